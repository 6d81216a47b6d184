package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := New(DefaultMentionDirectory())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "  \n\t ", want: ""},
		{name: "html text and entities", in: "<div><p>Fish &amp; <b>chips</b></p><script>alert(1)</script></div>", want: "Fish & chips"},
		{name: "non breaking space", in: "<p>Hello&nbsp;world</p>", want: "Hello world"},
		{name: "known mention", in: "Thanks @<6186434E-47E8-63CD-B72F-A71288EB6D56> for the fix", want: "Thanks Genaro Scavello for the fix"},
		{name: "letter leading mention", in: "Thanks @<CEBDFF88-616E-665A-BF1A-B85A0CBB30EE>!", want: "Thanks Amy Crossan!"},
		{name: "mention case insensitive", in: "@<6711815b-219c-6b1c-9514-d17377935077> approved", want: "Min Wang approved"},
		{name: "unknown mention", in: "ping @<ABCDEF00-0000-0000-0000-000000000000>", want: "ping [UNKNOWN]"},
		{name: "bare at sign", in: "cc @team", want: "cc team"},
		{name: "image", in: "before ![diagram](https://x.example/y.png) after", want: "before [IMAGE] after"},
		{name: "table", in: "|ISID|ROLE|\n|---|---|\n|DBEAM|ADMIN|", want: "Row: ISID = DBEAM, ROLE = ADMIN."},
		{
			name: "table keeps surrounding text",
			in:   "Access list:\n| ISID | ROLE |\n|---|---|\n| DBEAM | ADMIN |\n|X|Y|Z|\nDone",
			want: "Access list: Row: ISID = DBEAM, ROLE = ADMIN. Done",
		},
		{name: "link", in: "See [the doc ](https://example.com/a?b=c) now", want: "See [LINK: the doc] now"},
		{
			name: "attachment link",
			in:   "[design doc](https://dev.azure.com/o/_apis/wit/attachments/x?fileName=a.pdf)",
			want: "[LINK: design doc]",
		},
		{name: "bare url", in: "details at https://foo.example/baz.", want: "details at [LINK]"},
		{name: "latex", in: "$a \\neq b \\to c$ and \\text{speed} via `code`", want: "a != b -> c and speed via code"},
		{name: "block latex", in: "$$x \\leq\n y$$", want: "x <= y"},
		{name: "braces", in: "{x}", want: "x"},
		{
			name: "markdown sigils",
			in:   "## Heading\n**bold** text\n> quoted -> arrow\n---\nend",
			want: "Heading bold text quoted -> arrow end",
		},
		{name: "html quoted reply", in: "<div>intro</div><div>&gt; quoted reply</div>", want: "intro quoted reply"},
		{name: "inline quote marker", in: "a > b >= c", want: "a b >= c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalize_AttachmentPlaceholders(t *testing.T) {
	n := New(DefaultMentionDirectory(), WithAttachmentPlaceholders())

	assert.Equal(t, "[FILE: a.pdf] and [LINK: docs]",
		n.Normalize("[design doc](https://dev.azure.com/o/_apis/wit/attachments/x?fileName=a.pdf) and [docs](https://example.com)"))

	assert.Contains(t, stageNames(n), "replace_attachment_links")
	assert.NotContains(t, stageNames(New(nil)), "replace_attachment_links")
}

func stageNames(n *Normalizer) []string {
	var names []string
	for _, s := range n.Stages() {
		names = append(names, s.Name)
	}
	return names
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(DefaultMentionDirectory())

	inputs := []string{
		"|ISID|ROLE|\n|---|---|\n|DBEAM|ADMIN|",
		"Thanks @<6186434E-47E8-63CD-B72F-A71288EB6D56> for the fix",
		"See [the doc](https://example.com/a) or https://foo.example/baz",
		"## Heading\n**bold** text\n> quoted -> arrow",
		"$a \\neq b$",
		"<div>intro</div><div>&gt; quoted reply</div>",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestNormalize_NilDirectory(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "hi [UNKNOWN]", n.Normalize("hi @<6186434E-47E8-63CD-B72F-A71288EB6D56>"))
}

func TestNormalizer_Stages(t *testing.T) {
	n := New(nil)

	var names []string
	for _, s := range n.Stages() {
		names = append(names, s.Name)
	}

	assert.Equal(t, []string{
		"strip_markup",
		"resolve_mentions",
		"replace_images",
		"flatten_tables",
		"replace_links",
		"replace_urls",
		"remove_horizontal_rules",
		"strip_latex",
		"remove_braces",
		"strip_markdown_sigils",
		"collapse_whitespace",
	}, names)

	stages := n.Stages()
	stages[0].Name = "changed"
	assert.Equal(t, "strip_markup", n.Stages()[0].Name)
}

func TestFlattenTables(t *testing.T) {
	t.Run("no pipes", func(t *testing.T) {
		assert.Equal(t, "plain\ntext", FlattenTables("plain\ntext"))
	})

	t.Run("single pipe line kept", func(t *testing.T) {
		assert.Equal(t, "a\n| not a table", FlattenTables("a\n| not a table"))
	})

	t.Run("header only", func(t *testing.T) {
		assert.Equal(t, "before\nafter", FlattenTables("before\n|A|B|\n|---|---|\nafter"))
	})

	t.Run("multiple rows", func(t *testing.T) {
		got := FlattenTables("|A|B|\n|-|-|\n|1|2|\n|3|4|")
		assert.Equal(t, "Row: A = 1, B = 2. Row: A = 3, B = 4.", got)
	})
}

func TestStripMarkup_KeepsMentionDirective(t *testing.T) {
	got := StripMarkup("<p>hi @<CEBDFF88-616E-665A-BF1A-B85A0CBB30EE></p>")
	assert.Equal(t, "hi @<CEBDFF88-616E-665A-BF1A-B85A0CBB30EE>", got)
}

func TestLoadMentionDirectory(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "mentions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("\"6186434e-47e8-63cd-b72f-a71288eb6d56\": Someone Else\n"), 0o600))

		d, err := LoadMentionDirectory(path)
		require.NoError(t, err)

		assert.Equal(t, 1, d.Len())
		assert.Equal(t, "Someone Else", d.Resolve("6186434E-47E8-63CD-B72F-A71288EB6D56"))
		assert.Equal(t, UnknownMention, d.Resolve("000BFF27-0E57-6097-BD33-8C7CBEEC3268"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMentionDirectory(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("not a mapping", func(t *testing.T) {
		path := filepath.Join(dir, "list.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

		_, err := LoadMentionDirectory(path)
		assert.Error(t, err)
	})
}

func TestMentionDirectory_Nil(t *testing.T) {
	var d *MentionDirectory
	_, ok := d.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, UnknownMention, d.Resolve("x"))
}
