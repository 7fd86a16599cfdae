package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const myntraPage = `<html><head>
<script>window.dataLayer = [];</script>
<script>window.__myx = {"searchData":{"results":{"products":[
  {"productName":"Roadster Men Slim Fit Jeans","price":0,"discountedPrice":1099,
   "landingPageUrl":"jeans/roadster/12345/buy","images":[{"src":"https://assets.myntassets.com/jeans.jpg"}]},
  {"productName":"Second","price":999,"landingPageUrl":"x"}
]}}};</script>
</head><body></body></html>`

func TestMyntraEmbeddedState(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{body: myntraPage}
	res := NewMyntra(loader).Search(context.Background(), "roadster jeans")
	require.Equal(t, pricing.OutcomeFound, res.Outcome)
	require.Equal(t, pricing.RawCandidate{
		Provider: "Myntra",
		Price:    float64(1099),
		URL:      "https://www.myntra.com/jeans/roadster/12345/buy",
		Title:    "Roadster Men Slim Fit Jeans",
		ImageURL: "https://assets.myntassets.com/jeans.jpg",
	}, *res.Candidate)
	require.Equal(t, "https://www.myntra.com/roadster+jeans", loader.requests[0].URL)
	require.False(t, loader.requests[0].AllowRender)
}

func TestMyntraMissingStateIsParseError(t *testing.T) {
	t.Parallel()

	res := NewMyntra(&fakeLoader{body: "<html><script>var x = 1;</script></html>"}).Search(context.Background(), "jeans")
	require.Equal(t, pricing.OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, pricing.ErrParse)
}

func TestMyntraEmptyResults(t *testing.T) {
	t.Parallel()

	body := `<script>window.__myx = {"searchData":{"results":{"products":[]}}};</script>`
	res := NewMyntra(&fakeLoader{body: body}).Search(context.Background(), "jeans")
	require.Equal(t, pricing.OutcomeNoCandidate, res.Outcome)
}

func TestAjioSearchAPI(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(map[string]any{
		"products": []any{
			map[string]any{
				"name":  "Puma Running Shoes",
				"url":   "/puma-running-shoes/p/469581234_black",
				"price": map[string]any{"value": 2799, "formattedValue": "Rs. 2,799"},
			},
		},
	})
	require.NoError(t, err)

	loader := &fakeLoader{body: string(payload)}
	res := NewAjio(loader).Search(context.Background(), "puma shoes")
	require.Equal(t, pricing.OutcomeFound, res.Outcome)
	require.Equal(t, pricing.RawCandidate{
		Provider: "Ajio",
		Price:    float64(2799),
		URL:      "https://www.ajio.com/puma-running-shoes/p/469581234_black",
		Title:    "Puma Running Shoes",
	}, *res.Candidate)

	req := loader.requests[0]
	require.Equal(t, "https://www.ajio.com/api/search/v3", req.URL)
	require.Equal(t, "puma shoes", req.Params.Get("query"))
	require.Equal(t, "45", req.Params.Get("pageSize"))
	require.Equal(t, "relevance", req.Params.Get("sortBy"))
	require.Equal(t, "SITE", req.Params.Get("fields"))
	require.Equal(t, "application/json", req.Headers.Get("Accept"))
}

func TestAjioNonJSONIsParseError(t *testing.T) {
	t.Parallel()

	res := NewAjio(&fakeLoader{body: "<html>maintenance</html>"}).Search(context.Background(), "x")
	require.Equal(t, pricing.OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, pricing.ErrParse)
}

const meeshoPage = `<html><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"initialState":{"catalogs":{"catalogs":[
  {"products":[]},
  {"products":[{"name":"Banarasi Silk Saree","price":649,"slug":"banarasi-silk-saree/p/4xyz"}]}
]}}}}}</script>
</body></html>`

func TestMeeshoNextData(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{body: meeshoPage}
	res := NewMeesho(loader).Search(context.Background(), "silk saree")
	require.Equal(t, pricing.OutcomeFound, res.Outcome)
	require.Equal(t, pricing.RawCandidate{
		Provider: "Meesho",
		Price:    float64(649),
		URL:      "https://www.meesho.com/s/p/banarasi-silk-saree/p/4xyz",
		Title:    "Banarasi Silk Saree",
	}, *res.Candidate)
	require.True(t, loader.requests[0].AllowRender)
	require.Equal(t, "https://www.meesho.com/search?q=silk+saree", loader.requests[0].FullURL())
}

func TestMeeshoNoProducts(t *testing.T) {
	t.Parallel()

	body := `<script id="__NEXT_DATA__">{"props":{"pageProps":{"initialState":{"catalogs":{"catalogs":[{"products":[]}]}}}}}</script>`
	res := NewMeesho(&fakeLoader{body: body}).Search(context.Background(), "saree")
	require.Equal(t, pricing.OutcomeNoCandidate, res.Outcome)
}

func TestWithEndpointOverride(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{err: pricing.ErrTransport}
	NewMeesho(loader, WithEndpoint("http://127.0.0.1:9999/search")).Search(context.Background(), "x")
	require.Equal(t, "http://127.0.0.1:9999/search", loader.requests[0].URL)
}
