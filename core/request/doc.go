// Package request turns a [PreparedRequest], the transport-agnostic
// description of one API call, into an *http.Request.
//
// [Build] joins the base URL and path, encodes query parameters, assembles
// headers from the client defaults and the call, and picks the body
// encoding: JSON when only JSONBody is set, multipart/form-data when files or
// form fields are present. The body is buffered so the retry middleware can
// replay it through http.Request.GetBody.
package request
