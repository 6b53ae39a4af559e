package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseMessagePlain(t *testing.T) {
	raw := crlf(`From: Billing <billing@acme.com>
To: me@shop.com
Subject: Invoice #42
Date: Mon, 02 Jun 2025 10:00:00 +0200
Message-Id: <abc@acme.com>
References: <root@acme.com> <mid@acme.com>
Content-Type: text/plain; charset=utf-8

Hello,
please   pay the invoice.
`)

	email, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.NotEmpty(t, email.ID)
	assert.Equal(t, "Billing <billing@acme.com>", email.From)
	assert.Equal(t, "Invoice #42", email.Subject)
	assert.Equal(t, "<abc@acme.com>", email.MessageID)
	assert.Equal(t, "<root@acme.com>", email.ThreadID)
	assert.Equal(t, "Hello,\r\nplease   pay the invoice.", email.Body)
	assert.Equal(t, "Hello, please pay the invoice.", email.Snippet)
	assert.True(t, email.ReceivedAt.Equal(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)))
}

func TestParseMessageMultipart(t *testing.T) {
	raw := crlf(`From: ann@customer.com
Subject: =?ISO-8859-1?Q?R=E9sum=E9?=
In-Reply-To: <prev@shop.com>
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

UmVmdW5kIHBsZWFzZQ==
--inner
Content-Type: text/html

<p>Refund <b>please</b></p>
--inner--
--outer
Content-Type: text/plain
Content-Disposition: attachment; filename="notes.txt"

secret attachment text
--outer--
`)

	email, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "Résumé", email.Subject)
	assert.Equal(t, "<prev@shop.com>", email.ThreadID)
	assert.Equal(t, "Refund please", email.Body)
	assert.NotContains(t, email.Body, "secret")
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := crlf(`From: news@shop.com
Subject: Sale
Content-Type: text/html; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

<h1>Big sale</h1><p>Caf=E9 items 50% off</p>
`)

	email, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, email.Body, "Big sale")
	assert.Contains(t, email.Body, "Café items 50% off")
	assert.NotContains(t, email.Body, "<p>")
}

func TestParseMessageLongSnippet(t *testing.T) {
	raw := crlf("From: a@b.com\nSubject: long\n\n" + strings.Repeat("word ", 100))

	email, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, []rune(email.Snippet), snippetChars)
	assert.False(t, email.ReceivedAt.IsZero())
}

func TestParseMessageInvalid(t *testing.T) {
	_, err := ParseMessage(strings.NewReader("not a message"))
	assert.Error(t, err)
}
