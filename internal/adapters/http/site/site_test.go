package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		Convey("When registering the site handler", func() {
			Register(ctx, mux)

			Convey("Then it should serve the dashboard at the root", func() {
				req := httptest.NewRequest("GET", "/", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "oprChart")
				So(w.Body.String(), ShouldContainSubstring, "epaChart")
			})

			Convey("And it should serve page assets", func() {
				for _, asset := range []string{"/static/opr.js", "/static/epa.js", "/static/style.css"} {
					req := httptest.NewRequest("GET", asset, nil)
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, req)
					So(w.Code, ShouldEqual, http.StatusOK)
				}
			})

			Convey("And it should not handle other root subpaths", func() {
				req := httptest.NewRequest("GET", "/some-asset", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And missing assets are 404", func() {
				req := httptest.NewRequest("GET", "/static/missing.js", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSiteHandlerWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		ctx := context.Background()

		Convey("When registering the site handler", func() {
			Convey("Then it should panic", func() {
				So(func() {
					Register(ctx, nil)
				}, ShouldPanic)
			})
		})
	})
}
