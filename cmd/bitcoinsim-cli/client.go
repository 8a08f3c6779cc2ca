package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcjson"
)

// rpcClient issues JSON-RPC 2.0 calls against a bitcoinsimd server over
// plain HTTP, matching the wire format rpc.Server speaks.
type rpcClient struct {
	url string
	hc  *http.Client
}

func newRPCClient(hostPort string) *rpcClient {
	return &rpcClient{
		url: fmt.Sprintf("http://%s/", hostPort),
		hc:  &http.Client{},
	}
}

// call sends method(params) and decodes the raw result into v. If v is nil
// the result is discarded after checking for an RPC-level error.
func (c *rpcClient) call(method string, params []interface{}, v interface{}) error {
	req, err := btcjson.NewRequest(btcjson.RpcVersion2, 1, method, params)
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpResp, err := c.hc.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	var resp btcjson.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if v == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, v)
}

func marshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
