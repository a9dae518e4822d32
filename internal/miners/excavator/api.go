package excavator

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/r1k0/nuxhash/internal/lib"
	"go.uber.org/atomic"
)

const commandTimeout = 10 * time.Second

var ErrCommandFailed = errors.New("excavator command failed")

// apiClient speaks excavator's line-delimited JSON command protocol. Each
// command opens its own connection; excavator treats every line as an
// independent request
type apiClient struct {
	addr  string
	msgID atomic.Int64
}

type request struct {
	ID     int64    `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

type response struct {
	ID    int64   `json:"id"`
	Error *string `json:"error"`
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{addr: addr}
}

// call sends a single command and decodes the one-line reply into out (out may
// be nil when only success matters)
func (c *apiClient) call(method string, params []string, out interface{}) error {
	conn, err := net.DialTimeout("tcp", c.addr, commandTimeout)
	if err != nil {
		return lib.WrapError(ErrCommandFailed, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(commandTimeout))

	req := request{
		ID:     c.msgID.Inc(),
		Method: method,
		Params: params,
	}
	if params == nil {
		req.Params = []string{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return lib.WrapError(ErrCommandFailed, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return lib.WrapError(ErrCommandFailed, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return lib.WrapError(ErrCommandFailed, err)
	}
	if resp.Error != nil {
		return lib.WrapError(ErrCommandFailed, fmt.Errorf("%s: %s", method, *resp.Error))
	}

	if out != nil {
		if err := json.Unmarshal(line, out); err != nil {
			return lib.WrapError(ErrCommandFailed, err)
		}
	}
	return nil
}
