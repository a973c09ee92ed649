package main

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/document"
	"github.com/scidms/dms/param"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

//
// Public types
//

// errorBody is the JSON-serializable shape of every non-2xx response, per
// spec.md §6/§7: {type, message, url, method, traceback?}.
//
// Grounded on the teacher's ResponseError/createTelnyxError pair, flattened
// (no enclosing "error" object) to match the spec's body shape exactly.
type errorBody struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	URL       string   `json:"url"`
	Method    string   `json:"method"`
	Traceback []string `json:"traceback,omitempty"`
}

// Server holds the routing table and the per-database schema/store state.
// One Server serves every {db} path segment; schemas and stores are looked
// up by db name at request time rather than baked into the router.
type Server struct {
	log *zap.SugaredLogger

	schemas *schema.Cache

	mu     sync.RWMutex
	stores map[string]store.Store

	verbose bool

	routes map[string][]serverRoute
}

// NewServer builds a Server with an empty schema cache and store registry.
func NewServer(log *zap.SugaredLogger, verbose bool) *Server {
	s := &Server{
		log:     log,
		schemas: schema.NewCache(),
		stores:  make(map[string]store.Store),
		verbose: verbose,
	}
	s.initializeRouter()
	return s
}

//
// Private types
//

// serverRoute is a single route in a Server's routing table: a compiled
// path pattern plus the handler that runs on a match.
//
// Grounded on the teacher's stubServerRoute/compilePath pair in server.go,
// with the OpenAPI-operation/validator fields replaced by a direct handler
// func and this service's own param.Schema for query validation.
type serverRoute struct {
	pattern      *regexp.Regexp
	paramNames   []string
	queryParams  *param.Schema
	handler      func(s *Server, w http.ResponseWriter, r *http.Request, pathParams map[string]string, query map[string]interface{}) (interface{}, int, error)
}

var pathParameterPattern = regexp.MustCompile(`\{(\w+)\}`)

// compilePath compiles a path template like "/{db}/{type}/{id}/clone" into a
// regular expression plus the ordered names of its path parameters.
//
// Grounded on the teacher's compilePath, generalized from OpenAPI's
// spec.Path type to a plain string template since this service has no
// OpenAPI document of its own.
func compilePath(tmpl string) (*regexp.Regexp, []string) {
	if tmpl == "/" {
		return regexp.MustCompile(`\A/\z`), nil
	}

	var names []string
	parts := strings.Split(tmpl, "/")
	pattern := `\A`

	for _, part := range parts {
		if part == "" {
			continue
		}
		submatches := pathParameterPattern.FindAllStringSubmatch(part, -1)
		if submatches == nil {
			pattern += `/` + regexp.QuoteMeta(part)
		} else {
			pattern += `/(?P<` + submatches[0][1] + `>[^/]+)`
			names = append(names, submatches[0][1])
		}
	}
	return regexp.MustCompile(pattern + `\z`), names
}

func (s *Server) addRoute(method, tmpl string, query *param.Schema, handler func(*Server, http.ResponseWriter, *http.Request, map[string]string, map[string]interface{}) (interface{}, int, error)) {
	pattern, names := compilePath(tmpl)
	s.routes[method] = append(s.routes[method], serverRoute{
		pattern:     pattern,
		paramNames:  names,
		queryParams: query,
		handler:     handler,
	})
}

// initializeRouter builds the fixed route table from spec.md §6.
//
// Grounded on the teacher's initializeRouter: same static-routes-before-
// parameterized-routes sort, same regexp-capture-group matching, against a
// hand-written route list instead of one derived from an OpenAPI document.
func (s *Server) initializeRouter() {
	s.routes = make(map[string][]serverRoute)

	s.addRoute(http.MethodGet, "/", nil, handleRoot)
	s.addRoute(http.MethodPost, "/{db}/schema", param.SchemaPostQuery, handleSchemaPost)
	s.addRoute(http.MethodGet, "/{db}/schema", param.SchemaGetQuery, handleSchemaGet)
	s.addRoute(http.MethodGet, "/{db}", param.TypeListQuery, handleTypeList)
	s.addRoute(http.MethodGet, "/{db}/{type}", param.ObjectListQuery, handleObjectList)
	s.addRoute(http.MethodPost, "/{db}/{type}", nil, handleObjectPost)
	s.addRoute(http.MethodGet, "/{db}/{type}/{id}", param.GetQuery, handleObjectGet)
	s.addRoute(http.MethodPatch, "/{db}/{type}/{id}", param.PatchQuery, handleObjectPatch)
	s.addRoute(http.MethodGet, "/{db}/{type}/{id}/clone", param.CloneQuery, handleClone)
	s.addRoute(http.MethodGet, "/{db}/{type}/{id}/safe-links", param.SafeLinksQuery, handleSafeLinks)
	s.addRoute(http.MethodGet, "/{db}/{type}/{id}/graph", param.GraphQuery, handleGraph)

	for method, routes := range s.routes {
		sort.Slice(routes, func(i, j int) bool {
			return len(routes[i].paramNames) < len(routes[j].paramNames)
		})
		s.routes[method] = routes
	}
}

// routeRequest finds the first matching route for the request's method and
// path, returning the route and its extracted path parameters by name.
func (s *Server) routeRequest(r *http.Request) (*serverRoute, map[string]string) {
	for i := range s.routes[r.Method] {
		route := &s.routes[r.Method][i]
		match := route.pattern.FindStringSubmatch(r.URL.Path)
		if match == nil {
			continue
		}
		params := make(map[string]string, len(route.paramNames))
		for i, name := range route.pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			params[name] = match[i]
		}
		return route, params
	}
	return nil, nil
}

// ServeHTTP dispatches an incoming request to the matching route, or writes
// a §6/§7-shaped error response if no route matches or the handler fails.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	route, pathParams := s.routeRequest(r)
	if route == nil {
		s.writeError(w, r, start, http.StatusBadRequest,
			dmserr.New(dmserr.PathNotFound, "unrecognized request URL (%s %s)", r.Method, r.URL.Path))
		return
	}

	var query map[string]interface{}
	if route.queryParams != nil {
		var err error
		query, err = route.queryParams.Parse(r.URL.Query())
		if err != nil {
			s.writeError(w, r, start, http.StatusBadRequest, err)
			return
		}
	}

	data, status, err := route.handler(s, w, r, pathParams, query)
	if err != nil {
		s.writeError(w, r, start, http.StatusBadRequest, err)
		return
	}
	s.writeResponse(w, r, start, status, data)
}

//
// Route handlers — each translates its path/query parameters into a call
// against the document/schema/store packages and returns the response body.
//

func handleRoot(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	return "ok", http.StatusOK, nil
}

func handleSchemaPost(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	db := pp["db"]
	force, _ := q["force"].(bool)

	body, err := readBody(r)
	if err != nil {
		return nil, 0, err
	}
	if s.schemas.Has(db) && !force {
		return nil, 0, dmserr.New(dmserr.SchemaError, "schema already defined for database %q (use force=true if you are sure)", db)
	}

	sch, err := schema.Parse(body)
	if err != nil {
		return nil, 0, err
	}

	st, err := store.NewMemStore(sch.Types())
	if err != nil {
		return nil, 0, dmserr.Wrap(dmserr.SchemaError, err)
	}

	s.schemas.Invalidate(db)
	s.schemas.Set(db, sch)
	s.mu.Lock()
	s.stores[db] = st
	s.mu.Unlock()

	s.log.Infow("schema imported", "db", db, "types", len(sch.Types()), "force", force)
	return nil, http.StatusOK, nil
}

// include_id is accepted but unused: the prototype's flag strips a
// mongo-internal `_id` field that this schema representation never has.
func handleSchemaGet(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, err := s.schemas.Get(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	raw, err := sch.Raw()
	if err != nil {
		return nil, 0, dmserr.Wrap(dmserr.Internal, err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, 0, dmserr.Wrap(dmserr.Internal, err)
	}
	return out, http.StatusOK, nil
}

func handleTypeList(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, err := s.schemas.Get(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	types := sch.Types()
	sort.Strings(types)
	return types, http.StatusOK, nil
}

func handleObjectList(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	_, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	ids, err := st.IterateCollection(pp["type"])
	if err != nil {
		return nil, 0, err
	}
	return ids, http.StatusOK, nil
}

func handleObjectPost(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	var data map[string]interface{}
	if err := decodeBody(r, &data); err != nil {
		return nil, 0, err
	}
	id, err := document.Post(sch, st, pp["type"], data)
	if err != nil {
		return nil, 0, err
	}
	return id, http.StatusCreated, nil
}

func handleObjectGet(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	opts := document.GetOptions{
		Path:     q["path"].(string),
		MaxLevel: q["max_level"].(int),
		Tracking: q["tracking"].(bool),
		Meta:     q["meta"].(bool),
	}
	if shallow, _ := q["shallow"].(string); shallow != "" {
		opts.Shallow = strings.Fields(shallow)
	}
	out, err := document.Get(sch, st, pp["type"], pp["id"], opts)
	if err != nil {
		return nil, 0, err
	}
	return out, http.StatusOK, nil
}

func handleObjectPatch(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	var body struct {
		Path string      `json:"path"`
		Data interface{} `json:"data"`
	}
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	if err := document.Patch(sch, st, pp["type"], pp["id"], body.Path, body.Data); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusOK, nil
}

func handleClone(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	var shallow []string
	if raw, _ := q["shallow"].(string); raw != "" {
		shallow = strings.Fields(raw)
	}
	id, err := document.Clone(sch, st, pp["type"], pp["id"], shallow)
	if err != nil {
		return nil, 0, err
	}
	return id, http.StatusCreated, nil
}

func handleSafeLinks(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	var paths []string
	if raw, _ := q["paths"].(string); raw != "" {
		paths = strings.Fields(raw)
	}
	debug, _ := q["debug"].(bool)
	ids, err := document.SafeLinks(sch, st, pp["type"], pp["id"], paths, debug)
	if err != nil {
		return nil, 0, err
	}
	return ids, http.StatusOK, nil
}

func handleGraph(s *Server, w http.ResponseWriter, r *http.Request, pp map[string]string, q map[string]interface{}) (interface{}, int, error) {
	sch, st, err := s.dbState(pp["db"])
	if err != nil {
		return nil, 0, err
	}
	debug, _ := q["debug"].(bool)
	nodes, edges, err := document.Graph(sch, st, pp["type"], pp["id"], debug)
	if err != nil {
		return nil, 0, err
	}
	edgePairs := make([][2]string, len(edges))
	for i, e := range edges {
		edgePairs[i] = e
	}
	return map[string]interface{}{"nodes": nodes, "edges": edgePairs}, http.StatusOK, nil
}

//
// Private helpers
//

// dbState returns the schema and store currently installed for db, or
// SchemaError if no schema has been imported for it yet.
func (s *Server) dbState(db string) (*schema.Schema, store.Store, error) {
	sch, err := s.schemas.Get(db)
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	st, ok := s.stores[db]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, dmserr.New(dmserr.SchemaError, "no store initialized for database %q", db)
	}
	return sch, st, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, dmserr.Wrap(dmserr.Internal, err)
	}
	return body, nil
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return dmserr.Wrap(dmserr.TypeMismatch, err)
	}
	return nil
}

func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, start time.Time, status int, data interface{}) {
	if data == nil {
		data = http.StatusText(status)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		s.log.Errorw("failed to serialize response", "error", err)
		s.writeError(w, r, start, http.StatusInternalServerError, dmserr.Wrap(dmserr.Internal, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(encoded); err != nil {
		s.log.Errorw("failed to write response", "error", err)
	}
	s.log.Infow("request handled",
		"method", r.Method, "path", r.URL.Path, "status", status, "elapsed", time.Since(start))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, start time.Time, status int, err error) {
	body := errorBody{
		Message: err.Error(),
		URL:     r.URL.Path,
		Method:  r.Method,
	}
	if de, ok := dmserr.As(err); ok {
		body.Type = string(de.Kind)
		body.Traceback = de.StackFrames()
	} else {
		body.Type = string(dmserr.Internal)
	}
	s.writeResponse(w, r, start, status, body)
}
