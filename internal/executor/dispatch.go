package executor

import "github.com/wavebuild/wavebuild/internal/types"

type dispatchKey struct {
	Language types.Language
	Kind     types.Kind
}
