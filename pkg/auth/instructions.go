package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieExportGuide writes step-by-step instructions for exporting session cookies
func WriteCookieExportGuide(w io.Writer, baseURL, sessionCookie string) {
	line := strings.Repeat("=", 80)
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format+"\n", args...) }

	p(line)
	p("SESSION COOKIE EXPORT GUIDE")
	p(line)
	p("")
	p("The crawler reuses a signed-in browser session so it does not have to log in")
	p("on every run. Export the cookies of a signed-in session as JSON:")
	p("")
	p("STEP 1: Sign in")
	p("   - Open %s in your browser and sign in", baseURL)
	p("   - Make sure your feed loads")
	p("")
	p("STEP 2: Export the cookies")
	p("   - Use a cookie export extension (for example \"Cookie-Editor\" or \"EditThisCookie\")")
	p("   - Choose Export -> JSON while the platform tab is active")
	p("   - The result is an array of objects with at least \"name\" and \"value\"")
	p("")
	p("STEP 3: Check the session cookie")
	p("   - The array must contain the %q cookie", sessionCookie)
	p("   - Its \"expirationDate\" tells the crawler when the session ends")
	p("")
	p("STEP 4: Hand the cookies to the crawler, one of:")
	p("   postcrawler auth save --cookies-file cookies.json")
	p("   POSTCRAWLER_COOKIES='[...]' postcrawler run")
	p("   session.cookies_file: cookies.json   (in the config file)")
	p("")
	p("SECURITY WARNING:")
	p("   - These cookies grant full access to the account; never share them")
	p("   - Saved cookies are kept in the system keychain or an encrypted file")
	p("   - Use a dedicated account for crawling")
	p("")
	p(line)
}

// WriteQuickExportGuide writes a condensed version for experienced users
func WriteQuickExportGuide(w io.Writer, sessionCookie string) {
	fmt.Fprintf(w, "Sign in -> cookie export extension -> Export as JSON -> postcrawler auth save --cookies-file <file>\n")
	fmt.Fprintf(w, "   Required cookie: %s\n", sessionCookie)
}
