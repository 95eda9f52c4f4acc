package translate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hotel_scraper/internal/adapters/translate"
	"hotel_scraper/internal/domain"
)

func TestClient_Translate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sl") != "de" || q.Get("tl") != "en" || q.Get("q") != "Zimmer mit Meerblick. Frühstück inklusive." {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[[["Room with sea view. ","Zimmer mit Meerblick. ",null,null,10],["Breakfast included.","Frühstück inklusive.",null,null,10]],null,"de"]`))
	}))
	defer ts.Close()

	c := translate.New(ts.URL, time.Second)
	got, err := c.Translate(context.Background(), "Zimmer mit Meerblick. Frühstück inklusive.", "de", "en")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != "Room with sea view. Breakfast included." {
		t.Fatalf("unexpected translation: %q", got)
	}
}

func TestClient_Translate_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"quota": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>captcha</html>`))
		},
		"empty": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[[],null,"de"]`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(h)
			defer ts.Close()
			c := translate.New(ts.URL, time.Second)
			_, err := c.Translate(context.Background(), "Hallo", "de", "en")
			if !errors.Is(err, domain.ErrTranslation) {
				t.Fatalf("expected ErrTranslation, got %v", err)
			}
		})
	}
}
