package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks the participant's language per request: the lang query
// parameter wins, then Accept-Language, then the study language. Only
// languages with a loaded message file are considered.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	matcher := language.NewMatcher(append([]language.Tag{defaultTag}, supported...))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if tag, ok := negotiate(matcher, r); ok {
				loc = NewLocalizer(tag.String(), lang)
			}
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}

func negotiate(m language.Matcher, r *http.Request) (language.Tag, bool) {
	prefs, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		prefs = nil
	}
	if q := r.URL.Query().Get("lang"); q != "" {
		if t, err := language.Parse(q); err == nil {
			prefs = append([]language.Tag{t}, prefs...)
		}
	}
	if len(prefs) == 0 {
		return language.Und, false
	}
	tag, _, conf := m.Match(prefs...)
	return tag, conf != language.No
}
