package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
)

var exportHeader = []string{"id", "name", "category", "price", "stock"}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

// writeProductsCSV writes the export rows. Prices use two decimals.
func writeProductsCSV(w io.Writer, products []product.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, p := range products {
		if err := cw.Write([]string{
			p.ID,
			p.Name,
			p.CategoryName,
			p.Price.StringFixed(2),
			strconv.Itoa(p.Stock),
		}); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return cw.Error()
}

// AdminExportProducts serves GET /api/admin/products/export.csv, gzip
// compressed when the client accepts it.
func (h *Handler) AdminExportProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Export(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	w.Header().Add("Vary", "Accept-Encoding")

	var out io.Writer = w
	var gz *pgzip.Writer
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		gz = pgzip.NewWriter(w)
		out = gz
	}
	w.WriteHeader(http.StatusOK)

	err = writeProductsCSV(out, products)
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		// Headers are already sent.
		zctx.From(r.Context()).Error("Export products", zap.Error(err))
	}
}
