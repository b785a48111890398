package mailing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Filters(t *testing.T) {
	ts := NewTemplateService()

	out, err := ts.Render("", `Hi {{ name | default: "Friend" }}/{{ blank | default: "x" }} {{ email | mask_email }} {{ q | urlencode }} {{ raw | escape }}`, map[string]any{
		"blank": "  ",
		"email": "john@example.com",
		"q":     "a b&c",
		"raw":   "<b>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Friend/x jo***@example.com a+b%26c &lt;b&gt;", out)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", maskEmail("a@example.com"))
	assert.Equal(t, "no-at-sign", maskEmail("no-at-sign"))
	assert.Equal(t, "@example.com", maskEmail("@example.com"))
}

func TestRender_CachesByKey(t *testing.T) {
	ts := NewTemplateService()

	first, err := ts.Render("k", "{{ v }}", map[string]any{"v": "one"})
	require.NoError(t, err)
	assert.Equal(t, "one", first)

	// The cached template wins over a different source under the same key.
	second, err := ts.Render("k", "ignored {{ v }}", map[string]any{"v": "two"})
	require.NoError(t, err)
	assert.Equal(t, "two", second)
}

func TestRender_SyntaxErrorNotCached(t *testing.T) {
	ts := NewTemplateService()

	_, err := ts.Render("k", "{% if x %}unterminated", nil)
	require.Error(t, err)

	out, err := ts.Render("k", "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestConfirmationContent(t *testing.T) {
	c, err := NewTemplateService().ConfirmationContent(Confirmation{
		APIURL:       "https://api.example.com",
		SubscriberID: "0b6b5b44-3b8b-4a8e-9d1e-2a3f4c5d6e7f",
		Email:        "<jo>hn@example.com",
		ListName:     "Weekly & Friends",
	})
	require.NoError(t, err)

	link := "https://api.example.com/subscriber/confirm?t=0b6b5b44-3b8b-4a8e-9d1e-2a3f4c5d6e7f"
	assert.Equal(t, "Confirm your subscription", c.Subject)
	assert.Contains(t, c.HTML, `href="`+link+`"`)
	assert.Contains(t, c.HTML, "&lt;j***@example.com to Weekly &amp; Friends")
	assert.Contains(t, c.Text, link)
	assert.Contains(t, c.Text, "<j***@example.com to Weekly & Friends")
}

func TestConfirmationContent_NoListName(t *testing.T) {
	c, err := NewTemplateService().ConfirmationContent(Confirmation{
		APIURL:       "https://api.example.com",
		SubscriberID: "id",
		Email:        "ann@example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, c.Text, "an***@example.com to this mailing list")
}
