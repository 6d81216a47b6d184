// Package normalize turns raw tracker text (HTML, markdown, LaTeX fragments)
// into plain prose suitable for embedding.
package normalize

// Stage is one named text rewrite in the pipeline.
type Stage struct {
	Name  string
	Apply func(string) string
}

// Normalizer applies its stages in a fixed order.
type Normalizer struct {
	stages []Stage
}

// Option adjusts the standard pipeline.
type Option func(*options)

type options struct {
	attachments bool
}

// WithAttachmentPlaceholders turns links to tracker attachments into
// [FILE: name] instead of [LINK: text].
func WithAttachmentPlaceholders() Option {
	return func(o *options) { o.attachments = true }
}

// New builds the standard pipeline. A nil directory resolves every mention to
// UnknownMention.
func New(mentions *MentionDirectory, opts ...Option) *Normalizer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n := &Normalizer{
		stages: []Stage{
			{Name: "strip_markup", Apply: StripMarkup},
			{Name: "resolve_mentions", Apply: ResolveMentions(mentions)},
			{Name: "replace_images", Apply: ReplaceImages},
			{Name: "flatten_tables", Apply: FlattenTables},
			{Name: "replace_links", Apply: ReplaceLinks},
			{Name: "replace_urls", Apply: ReplaceURLs},
			{Name: "remove_horizontal_rules", Apply: RemoveHorizontalRules},
			{Name: "strip_latex", Apply: StripLatex},
			{Name: "remove_braces", Apply: RemoveBraces},
			{Name: "strip_markdown_sigils", Apply: StripMarkdownSigils},
			{Name: "collapse_whitespace", Apply: CollapseWhitespace},
		},
	}
	if o.attachments {
		n.insertBefore("replace_links", Stage{Name: "replace_attachment_links", Apply: ReplaceAttachmentLinks})
	}
	return n
}

func (n *Normalizer) insertBefore(name string, stage Stage) {
	for i, s := range n.stages {
		if s.Name == name {
			n.stages = append(n.stages[:i], append([]Stage{stage}, n.stages[i:]...)...)
			return
		}
	}
}

// Stages returns a copy of the pipeline in application order.
func (n *Normalizer) Stages() []Stage {
	out := make([]Stage, len(n.stages))
	copy(out, n.stages)
	return out
}

// Normalize runs raw through every stage. Empty input yields empty output.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	for _, stage := range n.stages {
		raw = stage.Apply(raw)
	}
	return raw
}
