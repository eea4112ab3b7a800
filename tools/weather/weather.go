package weather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/pkg/schema"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/localagent/tools", "weather")

const (
	// ToolName is the name of the tool advertised to the model
	ToolName = "get_current_weather"
	// DefaultBaseURL is Open-Meteo forecast endpoint
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"
)

// Request represents the tool input.
type Request struct {
	Latitude  float64 `json:"latitude" yaml:"Latitude" jsonschema:"title=latitude,description=Latitude of the location" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"Longitude" jsonschema:"title=longitude,description=Longitude of the location" validate:"gte=-180,lte=180"`
}

// Sample is the hourly temperature forecast
type Sample struct {
	Time        string   `json:"time" yaml:"Time"`
	Temperature *float64 `json:"temperature" yaml:"Temperature"`
}

// Result represents the tool output.
type Result struct {
	Samples []Sample `json:"samples" yaml:"Samples"`
}

// String returns the tool output in the form expected by the model
func (r *Result) String() string {
	samples := r.Samples
	if samples == nil {
		samples = []Sample{}
	}
	return "Weather data: " + llmutils.ToJSON(samples)
}

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    struct {
		Time          []string   `json:"time"`
		Temperature2m []*float64 `json:"temperature_2m"`
	} `json:"hourly"`

	// set on failed requests
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Tool is a tool that provides the hourly temperature forecast
type Tool struct {
	name        string
	description string
	funcParams  *jsonschema.Schema

	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[Request, Result] = (*Tool)(nil)

func New() (*Tool, error) {
	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	tool := &Tool{
		name:        ToolName,
		description: "Get the current weather for a given city",
		funcParams:  sc.Parameters,
		baseURL:     DefaultBaseURL,
		httpClient:  http.DefaultClient,
	}
	return tool, nil
}

func (t *Tool) WithBaseURL(baseURL string) *Tool {
	if baseURL != "" {
		t.baseURL = baseURL
	}
	return t
}

func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	if client != nil {
		t.httpClient = client
	}
	return t
}

// WithTimeout sets the request timeout, zero means no timeout
func (t *Tool) WithTimeout(timeout time.Duration) *Tool {
	t.timeout = timeout
	return t
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() *jsonschema.Schema {
	return t.funcParams
}

func (t *Tool) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := tools.Validate(t.name, req); err != nil {
		return nil, err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	u, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL")
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("hourly", "temperature_2m")
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get forecast")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read forecast")
	}

	var forecast forecastResponse
	decodeErr := json.Unmarshal(body, &forecast)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := forecast.Reason
		if decodeErr != nil || reason == "" {
			reason = slices.StringUpto(strings.TrimSpace(string(body)), 256)
		}
		return nil, errors.Newf("forecast request failed with status %d: %s", resp.StatusCode, reason)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "failed to decode forecast")
	}

	times := forecast.Hourly.Time
	temps := forecast.Hourly.Temperature2m
	count := min(len(times), len(temps))
	if len(times) != len(temps) {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "hourly_length_mismatch",
			"time", len(times),
			"temperature_2m", len(temps),
			"samples", count,
		)
	}

	res := &Result{
		Samples: make([]Sample, count),
	}
	for i := 0; i < count; i++ {
		res.Samples[i] = Sample{
			Time:        times[i],
			Temperature: temps[i],
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "forecast",
		"latitude", req.Latitude,
		"longitude", req.Longitude,
		"samples", count,
	)
	return res, nil
}

// Call coerces the model arguments and returns the forecast
// in the form "Weather data: [...]".
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args, err := tools.ParseArguments(t.name, input)
	if err != nil {
		return "", err
	}
	lat, err := args.Float("latitude")
	if err != nil {
		return "", err
	}
	long, err := args.Float("longitude")
	if err != nil {
		return "", err
	}

	res, err := t.Run(ctx, &Request{
		Latitude:  lat,
		Longitude: long,
	})
	if err != nil {
		return "", err
	}
	return res.String(), nil
}
