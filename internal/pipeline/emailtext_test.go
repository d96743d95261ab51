package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyFromRawPlainText(t *testing.T) {
	raw := []byte("From: sales@acme.test\r\n" +
		"To: buyer@example.test\r\n" +
		"Subject: Re: RFP - Office chairs [RFP-ID:r1]\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello,\r\n\r\nTotal price: 18500 EUR, delivery in 14 days.\r\n")

	subject, body, err := BodyFromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "Re: RFP - Office chairs [RFP-ID:r1]", subject)
	assert.Contains(t, body, "Total price: 18500 EUR")
}

func TestBodyFromRawHTMLOnly(t *testing.T) {
	raw := []byte("From: sales@acme.test\r\n" +
		"Subject: Offer\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{color:red}</style></head>" +
		"<body><p>Our offer:</p><ul><li>50 desks</li><li>14 day delivery</li></ul>" +
		"<script>alert(1)</script></body></html>\r\n")

	subject, body, err := BodyFromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "Offer", subject)
	assert.Contains(t, body, "Our offer:")
	assert.Contains(t, body, "50 desks")
	assert.NotContains(t, body, "alert(1)")
	assert.NotContains(t, body, "color:red")
}

func TestHTMLToTextBlocksBecomeLines(t *testing.T) {
	out := htmlToText("<div>first</div><div>second</div><p>third</p>")
	assert.Contains(t, out, "first\n")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "third")
}
