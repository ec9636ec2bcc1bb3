package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/models"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/shopspring/decimal"
)

// Tool names offered to the model
const (
	ToolSearchAccommodations = "search_accommodations"
	ToolSearchFoods          = "search_foods"
	ToolSearchPlaces         = "search_places"
	ToolConvertCurrency      = "convert_currency"
)

const toolDateLayout = "2006-01-02"

// ErrUnknownTool is reported back to the model when it names a tool that does not exist
var ErrUnknownTool = errors.New("unknown tool")

// ChatTools lets the model run listing searches and currency conversions
type ChatTools struct {
	listings *ListingService
	rates    *RatesService
}

// NewChatTools accepts nil services; their tools are not offered.
func NewChatTools(listings *ListingService, rates *RatesService) *ChatTools {
	return &ChatTools{listings: listings, rates: rates}
}

type listingArguments struct {
	Location  string   `json:"location"`
	Country   string   `json:"country"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Guests    int      `json:"guests"`
	Cuisine   string   `json:"cuisine"`
	Category  string   `json:"category"`
	MinPrice  *float64 `json:"min_price"`
	MaxPrice  *float64 `json:"max_price"`
	MinRating *float64 `json:"min_rating"`
}

type conversionArguments struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type listingResult struct {
	Count   int                    `json:"count"`
	Results []models.ListingRecord `json:"results"`
}

type toolError struct {
	Error string `json:"error"`
}

// Definitions lists the tools backed by a configured service
func (tools *ChatTools) Definitions() []llm.Tool {
	var definitions []llm.Tool
	if tools.listings != nil {
		definitions = append(definitions,
			llm.Tool{
				Name:        ToolSearchAccommodations,
				Description: "Find hotels and other lodging in a city.",
				Parameters: listingParameters(map[string]jsonschema.Definition{
					"check_in":  {Type: jsonschema.String, Description: "Check-in date, YYYY-MM-DD"},
					"check_out": {Type: jsonschema.String, Description: "Check-out date, YYYY-MM-DD"},
					"guests":    {Type: jsonschema.Integer, Description: "Number of adults"},
				}),
			},
			llm.Tool{
				Name:        ToolSearchFoods,
				Description: "Find restaurants in a city, optionally of one cuisine.",
				Parameters: listingParameters(map[string]jsonschema.Definition{
					"cuisine": {Type: jsonschema.String, Description: "Cuisine, e.g. korean"},
				}),
			},
			llm.Tool{
				Name:        ToolSearchPlaces,
				Description: "Find attractions in a city.",
				Parameters: listingParameters(map[string]jsonschema.Definition{
					"category": {Type: jsonschema.String, Enum: []string{"tourism", "museum", "park", "beach"}},
				}),
			},
		)
	}
	if tools.rates != nil {
		definitions = append(definitions, llm.Tool{
			Name:        ToolConvertCurrency,
			Description: "Convert an amount of money between two currencies at today's rate.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"from":   {Type: jsonschema.String, Description: "ISO 4217 code, e.g. USD"},
					"to":     {Type: jsonschema.String, Description: "ISO 4217 code, e.g. KRW"},
					"amount": {Type: jsonschema.Number, Description: "Positive amount in the from currency"},
				},
				Required: []string{"from", "to", "amount"},
			},
		})
	}
	return definitions
}

func listingParameters(extra map[string]jsonschema.Definition) jsonschema.Definition {
	properties := map[string]jsonschema.Definition{
		"location":   {Type: jsonschema.String, Description: "City or area, e.g. Seoul"},
		"country":    {Type: jsonschema.String, Description: "ISO 3166-1 alpha-2 country hint, e.g. KR"},
		"min_price":  {Type: jsonschema.Number},
		"max_price":  {Type: jsonschema.Number},
		"min_rating": {Type: jsonschema.Number, Description: "0 to 5"},
	}
	maps.Copy(properties, extra)
	return jsonschema.Definition{Type: jsonschema.Object, Properties: properties, Required: []string{"location"}}
}

// Call runs one tool and returns its JSON result. Failures are returned as {"error": ...}
// so the model can explain them instead of the turn failing.
func (tools *ChatTools) Call(ctx context.Context, call llm.ToolCall) string {
	result, err := tools.dispatch(ctx, call)
	if err != nil {
		return encodeToolResult(toolError{Error: err.Error()})
	}
	return encodeToolResult(result)
}

func (tools *ChatTools) dispatch(ctx context.Context, call llm.ToolCall) (any, error) {
	switch call.Name {
	case ToolSearchAccommodations, ToolSearchFoods, ToolSearchPlaces:
		if tools.listings == nil {
			break
		}
		var arguments listingArguments
		if err := decodeArguments(call.Arguments, &arguments); err != nil {
			return nil, err
		}
		return tools.search(ctx, call.Name, arguments)

	case ToolConvertCurrency:
		if tools.rates == nil {
			break
		}
		var arguments conversionArguments
		if err := decodeArguments(call.Arguments, &arguments); err != nil {
			return nil, err
		}
		return tools.rates.Convert(ctx, arguments.From, arguments.To, arguments.Amount)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
}

func (tools *ChatTools) search(ctx context.Context, name string, arguments listingArguments) (listingResult, error) {
	query := models.SearchQuery{
		Location:    arguments.Location,
		CountryHint: arguments.Country,
		Guests:      arguments.Guests,
		Cuisine:     arguments.Cuisine,
		Category:    arguments.Category,
	}
	var err error
	if query.CheckIn, err = parseToolDate("check_in", arguments.CheckIn); err != nil {
		return listingResult{}, err
	}
	if query.CheckOut, err = parseToolDate("check_out", arguments.CheckOut); err != nil {
		return listingResult{}, err
	}
	filters := models.Filters{MinPrice: arguments.MinPrice, MaxPrice: arguments.MaxPrice, MinRating: arguments.MinRating}

	var records []models.ListingRecord
	switch name {
	case ToolSearchAccommodations:
		records, err = tools.listings.SearchAccommodations(ctx, query, filters)
	case ToolSearchFoods:
		records, err = tools.listings.SearchFoods(ctx, query, filters)
	default:
		records, err = tools.listings.SearchPlaces(ctx, query, filters)
	}
	if err != nil {
		return listingResult{}, err
	}
	return listingResult{Count: len(records), Results: records}, nil
}

func decodeArguments(raw string, target any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return nil
}

func parseToolDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(toolDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must use YYYY-MM-DD", name)
	}
	return day, nil
}

func encodeToolResult(value any) string {
	body, err := json.Marshal(value)
	if err != nil {
		body, _ = json.Marshal(toolError{Error: err.Error()})
	}
	return string(body)
}
