package parsedmap

// Option configures Assemble and Parse.
type Option func(*options)

type options struct {
	isolateNested bool
}

// WithIsolatedNestedScopes stops the function walk at nested def bodies.
//
// By default every node under a top-level def is visited, so the returns,
// calls and control flow of nested functions are attributed to the enclosing
// function. With this option a nested def contributes only its decorators,
// parameter defaults and annotations, which run in the enclosing scope.
func WithIsolatedNestedScopes() Option {
	return func(o *options) {
		o.isolateNested = true
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
