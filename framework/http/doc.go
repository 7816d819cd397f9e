// Package http adapts net/http requests to the service container.
//
// # Request
//
// Request wraps *http.Request and produces the runtime variables every
// per-request container starts with.
//
//	req := gohttp.NewRequest(r)
//	vars, err := req.Variables()
//
//	// $request   *gohttp.Request
//	// $body      raw body as a string
//	// $query     map[string]string
//	// $post      map[string]string (url-encoded forms)
//	// $server    method, path, uri, host, proto, remote_addr
//	// $headers   map[string]string
//	// $cookies   map[string]string
//	// $route     chi URL parameters
//
// The body is buffered, so handler services can still Bind it:
//
//	var payload struct {
//	    Name string `json:"name"`
//	}
//	if err := req.Bind(&payload); err != nil { ... }
//
//	name  := req.Input("name", "default")
//	page  := req.Query("page", "1")
//	token := req.BearerToken()
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.Render(v)                 // whatever a handler service returned
//	res.Fail(err, cfg.App.Debug)  // 404 for unknown services, 500 otherwise
//	res.Success(data)             // 200 {"data": ...}
//	res.Error(400, "bad input")   // {"message": "bad input"}
package http
