package amadeus

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString accepts both JSON strings and numbers; the API is not consistent about codes and ratings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return string(f)
}

func (f flexString) Float() (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type apiError struct {
	Status int        `json:"status"`
	Code   flexString `json:"code"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
	Source struct {
		Parameter string `json:"parameter"`
	} `json:"source"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

type cityResponse struct {
	errorEnvelope
	Data []struct {
		IATACode string `json:"iataCode"`
		Name     string `json:"name"`
	} `json:"data"`
}

type hotelListResponse struct {
	errorEnvelope
	Data []struct {
		HotelID string `json:"hotelId"`
		Name    string `json:"name"`
	} `json:"data"`
}

type hotelOffersResponse struct {
	errorEnvelope
	Data []hotelOffer `json:"data"`
}

type hotelOffer struct {
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Hotel     struct {
		HotelID   string     `json:"hotelId"`
		Name      string     `json:"name"`
		CityCode  string     `json:"cityCode"`
		Rating    flexString `json:"rating"`
		Latitude  *float64   `json:"latitude"`
		Longitude *float64   `json:"longitude"`
		Address   *struct {
			Lines       []string `json:"lines"`
			CityName    string   `json:"cityName"`
			CountryCode string   `json:"countryCode"`
		} `json:"address"`
	} `json:"hotel"`
	Offers []struct {
		ID    string `json:"id"`
		Price *struct {
			Currency string `json:"currency"`
			Base     string `json:"base"`
			Total    string `json:"total"`
		} `json:"price"`
	} `json:"offers"`
}
