// Package transport performs the HTTP exchanges of a mORMot client and
// classifies responses by content type.
//
// JSON responses are parsed, text responses (text/plain, text/html, or no
// content type) are returned verbatim, and any other content type yields
// [UnsupportedContentTypeError]. Non-2xx JSON or text responses yield
// [RejectionError]. Network failures are returned wrapped so errors.As still
// reaches the underlying *url.Error.
package transport
