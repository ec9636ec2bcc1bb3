package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

// FakeUpstreams serves the booking, places, rate and model APIs from one test server.
// Each handler can be swapped before requests are made.
type FakeUpstreams struct {
	Server *httptest.Server

	HotelIDs     []string
	Offers       string
	InvalidIDs   []string
	Places       string
	Geocode      string
	RateTable    string
	ModelReply   string
	ModelStatus  int
	// ModelScript holds raw assistant messages answered in order before ModelReply
	ModelScript  []string
	OfferCalls   atomic.Int32
	PlacesCalls  atomic.Int32
	RateCalls    atomic.Int32
	ModelCalls   atomic.Int32
	GeocodeCalls atomic.Int32

	mu            sync.Mutex
	modelRequests []string
}

// NewFakeUpstreams starts a server with realistic default payloads. Close it with Server.Close.
func NewFakeUpstreams() *FakeUpstreams {
	fake := &FakeUpstreams{
		HotelIDs:   []string{"HTSEL001", "HTSEL002", "HTSEL003", "HTSEL004", "HTSEL005"},
		Offers:     DefaultOffers,
		Places:     DefaultPlaces,
		Geocode:    `{"results":[{"lon":126.978,"lat":37.566}]}`,
		RateTable:  `[{"result":1,"cur_unit":"USD","deal_bas_r":"1,300.5"},{"result":1,"cur_unit":"JPY(100)","deal_bas_r":"950"}]`,
		ModelReply: "Seoul",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/amadeus/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"test-token","token_type":"Bearer","expires_in":1799}`)
	})
	mux.HandleFunc("/amadeus/v1/reference-data/locations/cities", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[{"iataCode":"SEL"}]}`)
	})
	mux.HandleFunc("/amadeus/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]string, 0, len(fake.HotelIDs))
		for _, id := range fake.HotelIDs {
			data = append(data, map[string]string{"hotelId": id})
		}
		body, _ := json.Marshal(map[string]any{"data": data})
		writeJSON(w, http.StatusOK, string(body))
	})
	mux.HandleFunc("/amadeus/v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		fake.OfferCalls.Add(1)
		requested := strings.Split(r.URL.Query().Get("hotelIds"), ",")
		for _, invalid := range fake.InvalidIDs {
			for _, id := range requested {
				if strings.EqualFold(id, invalid) {
					writeJSON(w, http.StatusBadRequest, fmt.Sprintf(
						`{"errors":[{"status":400,"code":1257,"title":"INVALID PROPERTY CODE","detail":"Invalid property code","source":{"parameter":"hotelIds=%s"}}]}`, invalid))
					return
				}
			}
		}
		writeJSON(w, http.StatusOK, fake.Offers)
	})
	mux.HandleFunc("/geoapify/v2/places", func(w http.ResponseWriter, r *http.Request) {
		fake.PlacesCalls.Add(1)
		writeJSON(w, http.StatusOK, fake.Places)
	})
	mux.HandleFunc("/geoapify/v1/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		fake.GeocodeCalls.Add(1)
		writeJSON(w, http.StatusOK, fake.Geocode)
	})
	mux.HandleFunc("/exim", func(w http.ResponseWriter, r *http.Request) {
		fake.RateCalls.Add(1)
		writeJSON(w, http.StatusOK, fake.RateTable)
	})
	mux.HandleFunc("/llm/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		call := int(fake.ModelCalls.Add(1))
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.modelRequests = append(fake.modelRequests, string(body))
		fake.mu.Unlock()

		if fake.ModelStatus != 0 && fake.ModelStatus != http.StatusOK {
			writeJSON(w, fake.ModelStatus, `{"error":{"message":"The server is overloaded","type":"server_error"}}`)
			return
		}
		if call <= len(fake.ModelScript) {
			writeJSON(w, http.StatusOK, fmt.Sprintf(
				`{"id":"chatcmpl-%d","object":"chat.completion","choices":[{"index":0,"message":%s,"finish_reason":"tool_calls"}]}`, call, fake.ModelScript[call-1]))
			return
		}
		reply, _ := json.Marshal(fake.ModelReply)
		writeJSON(w, http.StatusOK, fmt.Sprintf(
			`{"id":"chatcmpl-%d","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, call, reply))
	})

	fake.Server = httptest.NewServer(mux)
	return fake
}

func (fake *FakeUpstreams) AmadeusURL() string  { return fake.Server.URL + "/amadeus" }
func (fake *FakeUpstreams) GeoapifyURL() string { return fake.Server.URL + "/geoapify" }
func (fake *FakeUpstreams) EximURL() string     { return fake.Server.URL + "/exim" }
func (fake *FakeUpstreams) LLMURL() string      { return fake.Server.URL + "/llm/v1" }

// ModelRequests returns the raw chat completion request bodies in arrival order
func (fake *FakeUpstreams) ModelRequests() []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.modelRequests...)
}

func (fake *FakeUpstreams) Close() {
	fake.Server.Close()
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// DefaultOffers lists five available hotels
const DefaultOffers = `{"data":[
 {"available":true,"hotel":{"hotelId":"HTSEL001","name":"Han River Hotel","rating":"4","address":{"lines":["1 Hangang-daero"],"cityName":"SEOUL"}},"offers":[{"price":{"currency":"KRW","total":"150000"}}]},
 {"available":true,"hotel":{"hotelId":"HTSEL002","name":"Myeongdong Inn","address":{"cityName":"SEOUL"}},"offers":[{"price":{"currency":"KRW","base":"90000"}}]},
 {"available":true,"hotel":{"hotelId":"HTSEL003","name":"Gangnam Suites","rating":"5"},"offers":[{"price":{"currency":"KRW","total":"320000"}}]},
 {"available":true,"hotel":{"hotelId":"HTSEL004","name":"Insadong Hanok"},"offers":[{"price":{"currency":"KRW","total":"120000"}}]},
 {"available":true,"hotel":{"hotelId":"HTSEL005","name":"Hongdae Stay"},"offers":[{"price":{"currency":"KRW","total":"70000"}}]}
]}`

// DefaultPlaces lists three named places and one nameless feature as GeoJSON
const DefaultPlaces = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"place_id":"gp-1","name":"Gyeongbokgung","formatted":"161 Sajik-ro","country_code":"kr","categories":["tourism","tourism.sights"],"rating":4.8},"geometry":{"type":"Point","coordinates":[126.977,37.579]}},
 {"type":"Feature","properties":{"place_id":"gp-2","name":"Bukchon","formatted":"Gye-dong","country_code":"kr","categories":["tourism"],"rating":4.3},"geometry":{"type":"Point","coordinates":[126.983,37.582]}},
 {"type":"Feature","properties":{"place_id":"gp-3","name":"N Seoul Tower","formatted":"105 Namsangongwon-gil","country_code":"kr","categories":["tourism.attraction"],"rating":4.6},"geometry":{"type":"Point","coordinates":[126.988,37.551]}},
 {"type":"Feature","properties":{"place_id":"gp-4","name":""}}
]}`
