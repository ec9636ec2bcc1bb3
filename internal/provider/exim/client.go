// Package exim reads daily home-currency exchange rates from the Korea Eximbank open API.
package exim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/provider"

	"github.com/shopspring/decimal"
)

const (
	dateLayout = "20060102"
	dataType   = "AP01"

	resultOK          = 1
	resultBadDataCode = 2
	resultBadAuthKey  = 3
	resultDailyLimit  = 4
)

var unitPattern = regexp.MustCompile(`^([A-Za-z]{3})(?:\((\d+)\))?$`)

// RateRow is one entry of the daily table as reported upstream
type RateRow struct {
	Result   int    `json:"result"`
	CurUnit  string `json:"cur_unit"`
	CurName  string `json:"cur_nm"`
	DealBasR string `json:"deal_bas_r"`
}

// ResultError reports a non-success result code embedded in a 200 response
type ResultError struct {
	Result int
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("koreaexim: result code %d", e.Result)
}

func (e *ResultError) ErrorType() provider.ErrorType {
	if e.Result == resultDailyLimit {
		return provider.ErrorTypeTransient
	}
	return provider.ErrorTypePermanent
}

// Client fetches one day's table at a time
type Client struct {
	api     *provider.Client
	authKey string
}

func NewClient(api *provider.Client, authKey string) *Client {
	return &Client{api: api, authKey: authKey}
}

func (client *Client) Name() string {
	return client.api.Name()
}

// DailyRates returns the home-currency value of one unit of each listed currency for the date.
// A date with no published table (weekends, holidays, before publication) yields provider.ErrNoData.
func (client *Client) DailyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	query := url.Values{
		"authkey":    {client.authKey},
		"searchdate": {date.Format(dateLayout)},
		"data":       {dataType},
	}

	body, err := client.api.Get(ctx, client.api.HTTPClient(), "", query)
	if err != nil {
		return nil, err
	}

	var rows []RateRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("koreaexim: parse response: %w", err)
	}
	return ParseRows(rows, date)
}

// ParseRows converts the upstream rows into per-unit rates keyed by currency code
func ParseRows(rows []RateRow, date time.Time) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		if row.Result != 0 && row.Result != resultOK {
			return nil, &ResultError{Result: row.Result}
		}

		code, rate, ok := parseRow(row)
		if !ok {
			continue
		}
		rates[code] = rate
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("koreaexim: no table for %s: %w", date.Format(dateLayout), provider.ErrNoData)
	}
	return rates, nil
}

func parseRow(row RateRow) (string, decimal.Decimal, bool) {
	match := unitPattern.FindStringSubmatch(strings.TrimSpace(row.CurUnit))
	if match == nil {
		return "", decimal.Zero, false
	}

	rate, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row.DealBasR), ",", ""))
	if err != nil || !rate.IsPositive() {
		return "", decimal.Zero, false
	}

	if match[2] != "" {
		multiplier, err := decimal.NewFromString(match[2])
		if err != nil || !multiplier.IsPositive() {
			return "", decimal.Zero, false
		}
		rate = rate.DivRound(multiplier, 10)
	}

	return strings.ToUpper(match[1]), rate, true
}
