package instances

import "vrpsearch/internal/opt"

// Source supplies an instance definition.
type Source interface {
	Name() string
	Load() (Definition, error)
}

// FileSource reads a yaml, json or csv file.
type FileSource struct {
	Path string
	CSV  CSVOptions
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Load() (Definition, error) { return LoadFile(f.Path, f.CSV) }

// BuiltinSource names a catalog entry.
type BuiltinSource string

func (b BuiltinSource) Name() string { return "builtin:" + string(b) }

func (b BuiltinSource) Load() (Definition, error) { return Builtin(string(b)) }

// InlineSource wraps a definition that is already in memory, such as one
// posted in a request body.
type InlineSource struct{ Def Definition }

func (i InlineSource) Name() string { return "inline:" + i.Def.Name }

func (i InlineSource) Load() (Definition, error) { return i.Def, nil }

// Resolve loads src and builds its instance.
func Resolve(src Source) (Definition, *opt.Instance, error) {
	d, err := src.Load()
	if err != nil {
		return Definition{}, nil, err
	}
	in, err := d.Build()
	if err != nil {
		return Definition{}, nil, err
	}
	return d, in, nil
}
