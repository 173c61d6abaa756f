// Package threat implementa la inspección de requests en busca de firmas de
// ataque: inyección SQL, XSS y violaciones de CORS.
//
// La detección es advisory: Inspect retorna los tags encontrados y el caller
// decide si rechaza el request. Por política, los patrones de inyección se
// rechazan siempre; las violaciones de CORS solo si el origin tampoco está
// en la lista secundaria de confianza.
package threat

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Tag identifica una firma de amenaza detectada.
type Tag string

const (
	TagSQLInjection  Tag = "sql_injection"
	TagXSS           Tag = "xss"
	TagCORSViolation Tag = "cors_violation"
)

// OriginVerdict es el resultado de validar un Origin contra las listas.
type OriginVerdict int

const (
	// OriginAllowed: el origin está en el allow-list principal.
	OriginAllowed OriginVerdict = iota
	// OriginTrusted: no está en el allow-list pero sí en la lista
	// secundaria; se registra la violación pero no se rechaza.
	OriginTrusted
	// OriginViolation: origin desconocido, rechazar.
	OriginViolation
	// OriginNone: el request no trae header Origin (no aplica CORS).
	OriginNone
)

// Firmas SQLi: secuencias de comentario, UNION SELECT, cláusulas siempre
// verdaderas y stacking de sentencias.
var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)union[\s/\*]+select`),
	regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s*('|%27)?\d`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s*('|%27)[^=]*=`),
	regexp.MustCompile(`--[^\r\n]*$`),
	regexp.MustCompile(`/\*.*\*/`),
	regexp.MustCompile(`(?i);\s*(drop|alter|truncate|delete)\s`),
	regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`),
	regexp.MustCompile(`(?i)\bsleep\s*\(\s*\d`),
}

// Firmas XSS / script injection.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus)\s*=`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed)`),
	regexp.MustCompile(`(?i)document\s*\.\s*(cookie|write)`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)expression\s*\(`),
}

// maxBodyPeek limita cuántos bytes del body se inspeccionan.
const maxBodyPeek = 16 << 10 // 16KB

// Detector corre la batería fija de checks sobre un request.
type Detector struct {
	allowed map[string]struct{}
	trusted map[string]struct{}
}

// New crea un Detector con el allow-list de CORS y la lista secundaria de
// orígenes confiables.
func New(allowedOrigins, trustedOrigins []string) *Detector {
	norm := func(list []string) map[string]struct{} {
		out := make(map[string]struct{}, len(list))
		for _, o := range list {
			o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
			if o != "" {
				out[o] = struct{}{}
			}
		}
		return out
	}
	return &Detector{allowed: norm(allowedOrigins), trusted: norm(trustedOrigins)}
}

// Inspect corre los checks de patrones sobre método, URL, query, headers y
// body (hasta maxBodyPeek, reponiendo el body para el siguiente handler).
// Retorna el conjunto de tags detectados; vacío si el request está limpio.
func (d *Detector) Inspect(r *http.Request) []Tag {
	var tags []Tag
	seen := map[Tag]bool{}
	add := func(t Tag) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	for _, s := range d.surfaces(r) {
		if s == "" {
			continue
		}
		if matchAny(sqlPatterns, s) {
			add(TagSQLInjection)
		}
		if matchAny(xssPatterns, s) {
			add(TagXSS)
		}
	}

	if d.CheckOrigin(r.Header.Get("Origin")) == OriginViolation {
		add(TagCORSViolation)
	}

	return tags
}

// CheckOrigin valida un Origin contra el allow-list y la lista secundaria.
func (d *Detector) CheckOrigin(origin string) OriginVerdict {
	origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if origin == "" {
		return OriginNone
	}
	if _, ok := d.allowed["*"]; ok {
		return OriginAllowed
	}
	if _, ok := d.allowed[origin]; ok {
		return OriginAllowed
	}
	if _, ok := d.trusted[origin]; ok {
		return OriginTrusted
	}
	return OriginViolation
}

// surfaces arma las superficies de texto a inspeccionar.
func (d *Detector) surfaces(r *http.Request) []string {
	out := []string{
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("User-Agent"),
		r.Header.Get("Referer"),
	}

	// Copias percent-decodificadas de path y query crudos. No alcanza con
	// r.URL.Query(): el parser descarta parámetros malformados (un ";" en
	// el valor, típico del stacking de sentencias), y la query cruda deja
	// la firma partida por %20. Decodificar el string completo cubre ambos.
	if dec, err := url.QueryUnescape(r.URL.RawQuery); err == nil {
		out = append(out, dec)
	}
	if dec, err := url.QueryUnescape(r.URL.Path); err == nil {
		out = append(out, dec)
	}

	// Query values ya parseados (la firma puede venir repartida en campos)
	for _, vs := range r.URL.Query() {
		out = append(out, vs...)
	}

	// Body: leer hasta maxBodyPeek y reponer el stream completo para el
	// siguiente handler (los bytes leídos por delante, el resto intacto).
	if r.Body != nil && r.Method != http.MethodGet {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, io.LimitReader(r.Body, maxBodyPeek))
		r.Body = &replayBody{
			Reader: io.MultiReader(bytes.NewReader(buf.Bytes()), r.Body),
			orig:   r.Body,
		}
		out = append(out, buf.String())
	}

	return out
}

// replayBody repone los bytes inspeccionados delante del body original.
type replayBody struct {
	io.Reader
	orig io.Closer
}

func (b *replayBody) Close() error { return b.orig.Close() }

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Strings convierte tags a []string para persistencia/logs.
func Strings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
