package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/web"
)

type demoClient struct {
	baseURL string
	http    *http.Client
}

func newDemoClient(c *cli.Context) (*demoClient, error) {
	base := strings.TrimRight(c.String(flagAddr), "/")
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrapf(err, "invalid --%s", flagAddr)
	}
	return &demoClient{baseURL: base, http: &http.Client{Timeout: c.Duration(flagTimeout)}}, nil
}

// responseError turns a non 2xx reply into an error carrying the body the demo sent.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	return errors.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}

func (dc *demoClient) start(cycles uint32) error {
	form := url.Values{"cycles": {strconv.FormatUint(uint64(cycles), 10)}}
	resp, err := dc.http.PostForm(dc.baseURL+"/ulp_start", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

func (dc *demoClient) status() (*web.Status, []byte, error) {
	resp, err := dc.http.Get(dc.baseURL + "/status")
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, responseError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	var status web.Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, nil, errors.Wrap(err, "decoding status")
	}
	return &status, raw, nil
}

func stateColor(state gate.State) *color.Color {
	switch state {
	case gate.Empty:
		return color.New(color.FgYellow)
	case gate.Filled:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgRed)
	}
}

// StartAction posts the blink count given as the only argument.
func StartAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one argument: the number of blink cycles")
	}
	cycles, err := strconv.ParseUint(c.Args().First(), 10, 32)
	if err != nil {
		return errors.Wrap(err, "invalid cycles")
	}
	client, err := newDemoClient(c)
	if err != nil {
		return err
	}
	if err := client.start(uint32(cycles)); err != nil {
		return err
	}
	printf(c.App.Writer, "Sent %d blink cycles; the demo is going to sleep", cycles)
	return nil
}

// StatusAction prints the handoff state.
func StatusAction(c *cli.Context) error {
	client, err := newDemoClient(c)
	if err != nil {
		return err
	}
	status, raw, err := client.status()
	if err != nil {
		return err
	}
	if c.Bool("json") {
		printf(c.App.Writer, "%s", strings.TrimSpace(string(raw)))
		return nil
	}
	printf(c.App.Writer, "state:       %s", stateColor(status.State).Sprint(status.State))
	printf(c.App.Writer, "overwritten: %d", status.Overwritten)
	printf(c.App.Writer, "uptime:      %s", status.Uptime)
	return nil
}
