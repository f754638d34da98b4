package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

const (
	verificationSubject  = "Verify your AuthentiCute account"
	passwordResetSubject = "Reset your AuthentiCute password"
)

const verificationHTML = `<html>
<body>
    <h2>Welcome to AuthentiCute!</h2>
    <p>
        Please click the link below to verify your email address:
        <a href="{{.Link}}">Verify Email</a>
    </p>
    <p>If you didn't create this account, you can ignore this email.</p>
</body>
</html>
`

const verificationText = `Welcome to AuthentiCute!

Verify your email address by opening this link:
{{.Link}}

If you didn't create this account, you can ignore this email.
`

const passwordResetHTML = `<html>
<body>
    <h2>Password Reset Request</h2>
    <p>
        Click the link below to reset your password:
        <a href="{{.Link}}">Reset Password</a>
    </p>
    <p>If you didn't request this, you can ignore this email.</p>
    <p>This link will expire in {{.ExpiresIn}}.</p>
</body>
</html>
`

const passwordResetText = `Password Reset Request

Reset your password by opening this link:
{{.Link}}

If you didn't request this, you can ignore this email.
This link will expire in {{.ExpiresIn}}.
`

var (
	verificationHTMLTmpl  = htmltemplate.Must(htmltemplate.New("verification.html").Parse(verificationHTML))
	verificationTextTmpl  = texttemplate.Must(texttemplate.New("verification.txt").Parse(verificationText))
	passwordResetHTMLTmpl = htmltemplate.Must(htmltemplate.New("password_reset.html").Parse(passwordResetHTML))
	passwordResetTextTmpl = texttemplate.Must(texttemplate.New("password_reset.txt").Parse(passwordResetText))
)

type templateData struct {
	Link      string
	ExpiresIn string
}

func buildLink(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func humanizeTTL(ttl time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int64(ttl/time.Hour), "hour")
	case ttl >= time.Minute && ttl%time.Minute == 0:
		return plural(int64(ttl/time.Minute), "minute")
	default:
		return ttl.String()
	}
}

func render(html *htmltemplate.Template, text *texttemplate.Template, data templateData) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}
