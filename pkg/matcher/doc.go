// Package matcher is the HTTP client for the external pattern matcher service.
//
// The matcher owns the automaton and the match algorithm; pdaviz only asks
// it for graph payloads and for the trace of a match. Four endpoints are
// used, all POST with a JSON body:
//
//	/api/{role}     {code}          -> graph payloads keyed by sub-graph label
//	/api/match      {code, pattern} -> initial pair, step count, match states
//	/api/step       {step}          -> replay state, stacks and code position
//	/api/validate   {code, lang}    -> syntax check
//
// Every response carries a status field. A status of "error" is returned as
// a BACKEND_ERROR wrapping [errors.BackendError]; HTTP failures map to
// NETWORK_ERROR and an expired request deadline to TIMEOUT. Requests are
// never retried and never cached.
//
// # Usage
//
//	c, err := matcher.New("http://localhost:5000", matcher.WithTimeout(5*time.Second))
//	if err != nil {
//	    return err
//	}
//	payloads, err := c.FetchGraph(ctx, replay.RoleCode, source)
package matcher
