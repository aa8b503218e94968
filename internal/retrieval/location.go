package retrieval

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// ParseLocation splits a location identifier such as s3://bucket/logs/2024
// into container and prefix. The scheme is ignored; the host is the
// container and the path without its leading separators is the prefix.
//
// Only the scheme and host go through url.Parse. The path is taken as
// written, without percent-decoding, because object keys may contain a
// literal '%'. A query or fragment is dropped.
func ParseLocation(identifier string) (types.Location, error) {
	authority, path := splitPath(strings.TrimSpace(identifier))

	parsed, err := url.Parse(authority)
	if err != nil {
		return types.Location{}, errors.Wrap(errors.ErrCodeInvalidLocation,
			fmt.Sprintf("failed to parse location %q", identifier), err).
			WithComponent(component).
			WithOperation("parse")
	}

	if parsed.Host == "" {
		return types.Location{}, errors.NewError(errors.ErrCodeInvalidLocation,
			fmt.Sprintf("location %q must include a bucket name", identifier)).
			WithComponent(component).
			WithOperation("parse").
			WithContext("location", identifier)
	}

	return types.Location{
		Container: parsed.Host,
		Prefix:    strings.TrimLeft(path, "/"),
	}, nil
}

// splitPath cuts identifier into scheme://host and the raw path after it
func splitPath(identifier string) (authority, path string) {
	start := strings.Index(identifier, "//")
	if start < 0 {
		return identifier, ""
	}
	rest := identifier[start+2:]
	end := strings.IndexAny(rest, "/?#")
	if end < 0 {
		return identifier, ""
	}

	authority = identifier[:start+2+end]
	path = rest[end:]
	if cut := strings.IndexAny(path, "?#"); cut >= 0 {
		path = path[:cut]
	}
	return authority, path
}
