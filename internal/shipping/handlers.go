package shipping

import (
	"net/http"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// Handler exposes the configured rate table over HTTP.
type Handler struct {
	Resolver *Resolver
	Currency string
}

type regionResponse struct {
	Name string `json:"name"`
	Fee  string `json:"fee"`
}

// Regions lists every configured region with its flat fee.
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping resolver not configured", nil)
		return
	}
	names := h.Resolver.Regions()
	out := make([]regionResponse, 0, len(names))
	for _, name := range names {
		fee, _ := h.Resolver.Lookup(name)
		out = append(out, regionResponse{Name: name, Fee: money.FormatFixed(fee)})
	}
	common.DataWithMeta(w, http.StatusOK, out, map[string]any{
		"currency":      h.Currency,
		"defaultFee":    money.FormatFixed(h.Resolver.DefaultFee),
		"freeThreshold": money.FormatFixed(h.Resolver.FreeThreshold),
	})
}

// Quote resolves the fee for ?region=&subtotal=. The subtotal is read with
// the same lenient parsing used for prices.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping resolver not configured", nil)
		return
	}
	q := r.URL.Query()
	region := q.Get("region")
	subtotal := money.Normalize(q.Get("subtotal"))
	_, known := h.Resolver.Lookup(region)
	common.Data(w, http.StatusOK, map[string]any{
		"region":       region,
		"knownRegion":  known,
		"subtotal":     money.FormatFixed(subtotal),
		"freeShipping": h.Resolver.QualifiesForFree(subtotal),
		"fee":          money.FormatFixed(h.Resolver.Resolve(region, subtotal)),
		"currency":     h.Currency,
	})
}
