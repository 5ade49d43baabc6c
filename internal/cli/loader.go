package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ndjson"
)

// loadView reads the view definition at path and compiles it. Failures are
// command errors.
func loadView(path string) (*compiler.CompiledView, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--config is required")
	}
	def, err := compiler.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load view definition", err)
	}
	view, err := compiler.Compile(def)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid view definition", err)
	}
	return view, nil
}

// openInputs returns the documents of every input in order. "-" (and no
// inputs at all) reads stdin; http:// and https:// inputs are fetched. Each
// input is opened when the stream reaches it and closed when the stream
// moves past it or stops.
func openInputs(ctx context.Context, paths []string, stdin io.Reader) iter.Seq2[any, error] {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	streams := make([]iter.Seq2[any, error], len(paths))
	for i, p := range paths {
		streams[i] = inputStream(ctx, p, stdin)
	}
	return ndjson.Concat(streams...)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// openInput opens one input for reading.
func openInput(ctx context.Context, path string, stdin io.Reader) (io.ReadCloser, error) {
	switch {
	case path == "-":
		return io.NopCloser(stdin), nil
	case isURL(path):
		return fetch(ctx, path)
	default:
		return os.Open(path)
	}
}

// fetch starts a GET for url. Any status outside 2xx is an error.
func fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/fhir+ndjson, application/x-ndjson, */*")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

func inputStream(ctx context.Context, path string, stdin io.Reader) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		r, err := openInput(ctx, path, stdin)
		if err != nil {
			yield(nil, fmt.Errorf("open input: %w", err))
			return
		}
		defer r.Close()

		for doc, err := range ndjson.Read(r) {
			if err != nil {
				yield(nil, fmt.Errorf("%s: %w", path, err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// errorCode picks the JSON error code for err.
func errorCode(err error) string {
	if code := compiler.ErrorCode(err); code != "" {
		return code
	}
	var loadErr *compiler.LoadError
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.As(err, &loadErr):
		return ErrCodeLoadFailed
	}
	return ErrCodeGeneric
}
