// Package rpc implements the JSON-RPC 2.0 surface of spec.md §6: a plain
// HTTP endpoint dispatching Bitcoin Core-shaped method calls onto a
// nodeclient.NodeClient. Request and response envelopes are btcsuite/btcd's
// own btcjson types, the same wire shapes a real node's RPC server uses.
package rpc

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btclog"
	"github.com/google/uuid"

	"github.com/chainwayxyz/bitcoinsim/internal/build"
	"github.com/chainwayxyz/bitcoinsim/nodeclient"
)

var log = build.NewSubLogger("RPCS", nil)

// UseLogger replaces the package-level logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

type handlerFunc func(client nodeclient.NodeClient, net *chaincfg.Params, params []json.RawMessage) (interface{}, error)

var handlers = map[string]handlerFunc{
	"sendrawtransaction":          handleSendRawTransaction,
	"getrawtransaction":           handleGetRawTransaction,
	"getrawtransactioninfo":       handleGetRawTransaction,
	"gettransaction":              handleGetRawTransaction,
	"sendtoaddress":               handleSendToAddress,
	"getnewaddress":               handleGetNewAddress,
	"getbalance":                  handleGetBalance,
	"generatetoaddress":           handleGenerateToAddress,
	"getbestblockhash":            handleGetBestBlockHash,
	"getblock":                    handleGetBlock,
	"getblockheader":              handleGetBlockHeader,
	"getblockcount":               handleGetBlockCount,
	"fundrawtransaction":          handleFundRawTransaction,
	"signrawtransactionwithwallet": handleSignRawTransactionWithWallet,
}

// Server binds one nodeclient.NodeClient to an HTTP listener and serves
// JSON-RPC 2.0 requests against it, matching spec.md §6 and the process-wide
// "one ledger per bound port" model of §9.
type Server struct {
	client   nodeclient.NodeClient
	net      *chaincfg.Params
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer constructs a Server for client. Addresses passed to address-
// taking RPC methods are decoded under net. It does not yet listen; call
// Start.
func NewServer(client nodeclient.NodeClient, net *chaincfg.Params) *Server {
	return &Server{client: client, net: net}
}

// Start binds addr (host:port, with port 0 meaning "any free port") and
// begins serving in the background. It returns the address actually bound,
// so a caller requesting an OS-assigned port can discover it.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("rpc server stopped: %v", err)
		}
	}()

	return ln.Addr().String(), nil
}

// Stop shuts the server down, closing its listener.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Close()
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req btcjson.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, nil, nil, btcjson.NewRPCError(btcjson.ErrRPCParse, err.Error()))
		return
	}

	// Stamped purely for log correlation; it never reaches the client
	// response, which keeps the wire format exactly btcjson.Response.
	reqID := uuid.New().String()
	log.Debugf("[%s] dispatching %s", reqID, req.Method)

	result, rpcErr := s.dispatch(req.Method, req.Params)
	if rpcErr != nil {
		log.Debugf("[%s] %s failed: %s", reqID, req.Method, rpcErr.Message)
	}
	writeResponse(w, req.Id, result, rpcErr)
}

func (s *Server) dispatch(method string, rawParams []json.RawMessage) (interface{}, *btcjson.RPCError) {
	// Method names are matched case-insensitively; handlers is keyed by
	// lowercase literals.
	handler, ok := handlers[strings.ToLower(method)]
	if !ok {
		return nil, btcjson.NewRPCError(btcjson.ErrRPCMethodNotFound, "method not found: "+method)
	}

	result, err := handler(s.client, s.net, rawParams)
	if err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

func writeResponse(w http.ResponseWriter, id interface{}, result interface{}, rpcErr *btcjson.RPCError) {
	var resultRaw json.RawMessage
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			rpcErr = btcjson.NewRPCError(btcjson.ErrRPCInternal, err.Error())
		} else {
			resultRaw = encoded
		}
	}

	resp, err := btcjson.NewResponse(id, resultRaw, rpcErr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
