// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"

	"github.com/relabs-tech/tablerest/core/logger"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Accept", "Accept-Encoding", "Content-Type", "Content-Length", logger.RequestIDHeader}, ", ")
)

// recoveryLogger forwards recovered panics to logrus
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Default().Errorln(append([]interface{}{"Error 4701: recovered from panic:"}, v...)...)
}

// handleRecovery turns a panicking request into a 500. Its transaction has been
// rolled back by then.
func (b *Backend) handleRecovery() {
	b.router.Use(handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	))
}

// handleCORS allows cross origin requests from corsOrigin and answers all preflight
// requests
func (b *Backend) handleCORS() {
	b.router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", b.corsOrigin)
			header.Set("Access-Control-Allow-Methods", corsMethods)
			header.Set("Access-Control-Allow-Headers", corsHeaders)
			header.Set("Access-Control-Expose-Headers", logger.RequestIDHeader)
			header.Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				logger.FromContext(r.Context()).Debugln("preflight", r.Method, r.URL)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	})
}

// handleCompression gzips responses for clients which accept it
func (b *Backend) handleCompression() {
	b.router.Use(handlers.CompressHandler)
}
