package threat

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newDetector() *Detector {
	return New(
		[]string{"https://app.example.com"},
		[]string{"https://staging.example.com"},
	)
}

func TestInspect_SQLInjection(t *testing.T) {
	payloads := []string{
		"/api/users?id=1%20UNION%20SELECT%20password%20FROM%20users",
		"/api/users?id=1'%20OR%20'1'='1",
		"/api/users?id=1%20or%201=1",
		"/api/users?q=x;%20DROP%20TABLE%20users;",
		"/api/users?id=1;%20DELETE%20FROM%20sessions%20WHERE%201=1",
		"/api/users?q=x%3B%20TRUNCATE%20TABLE%20audit_log%20",
		"/api/users?q=sleep(5)",
		"/api/users?q=waitfor%20delay%20'0:0:5'",
	}
	d := newDetector()
	for _, p := range payloads {
		r := httptest.NewRequest("GET", p, nil)
		tags := d.Inspect(r)
		require.Contains(t, tags, TagSQLInjection, "payload %q", p)
	}
}

func TestInspect_XSS(t *testing.T) {
	payloads := []string{
		"/search?q=<script>alert(1)</script>",
		"/search?q=javascript:alert(1)",
		"/search?q=<img%20onerror=alert(1)>",
		"/search?q=<iframe%20src=evil>",
		"/search?q=document.cookie",
		"/search?q=eval(atob('...'))",
	}
	d := newDetector()
	for _, p := range payloads {
		r := httptest.NewRequest("GET", p, nil)
		require.Contains(t, d.Inspect(r), TagXSS, "payload %q", p)
	}
}

func TestInspect_BodyInspectedAndReplayed(t *testing.T) {
	body := `{"comment": "<script>document.location='//evil'</script>"}`
	r := httptest.NewRequest("POST", "/api/comments", strings.NewReader(body))

	d := newDetector()
	tags := d.Inspect(r)
	require.Contains(t, tags, TagXSS)

	// El body queda íntegro para el handler siguiente.
	got, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, body, string(got))
}

func TestInspect_CleanRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"email":"ana@example.com","password":"hunter2!"}`))
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("User-Agent", "Mozilla/5.0")

	require.Empty(t, newDetector().Inspect(r))
}

func TestInspect_HeadersInspected(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/courses", nil)
	r.Header.Set("User-Agent", "sqlmap' OR '1'='1")

	require.Contains(t, newDetector().Inspect(r), TagSQLInjection)
}

func TestCheckOrigin(t *testing.T) {
	d := newDetector()

	require.Equal(t, OriginNone, d.CheckOrigin(""))
	require.Equal(t, OriginAllowed, d.CheckOrigin("https://app.example.com"))
	// Normalización: case y trailing slash no cambian el veredicto.
	require.Equal(t, OriginAllowed, d.CheckOrigin("HTTPS://APP.EXAMPLE.COM/"))
	require.Equal(t, OriginTrusted, d.CheckOrigin("https://staging.example.com"))
	require.Equal(t, OriginViolation, d.CheckOrigin("https://evil.example.net"))
}

func TestCheckOrigin_Wildcard(t *testing.T) {
	d := New([]string{"*"}, nil)
	require.Equal(t, OriginAllowed, d.CheckOrigin("https://anything.example.org"))
}

func TestInspect_CORSViolationTag(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/courses", nil)
	r.Header.Set("Origin", "https://evil.example.net")
	require.Contains(t, newDetector().Inspect(r), TagCORSViolation)

	// Un origin de la lista secundaria no genera tag de violación.
	r = httptest.NewRequest("GET", "/api/courses", nil)
	r.Header.Set("Origin", "https://staging.example.com")
	require.NotContains(t, newDetector().Inspect(r), TagCORSViolation)
}
