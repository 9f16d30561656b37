package glm

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/pointglm/basis"
)

// state is the serialized form of a GLM.
type state struct {
	U0           float64
	Kappa        basis.StimulusFilter
	Eta          basis.HistoryFilter
	Nonlinearity NonlinearityType
	Noise        NoiseType
}

// Save writes the model to w as a gzip-compressed gob.
func (g *GLM) Save(w io.Writer) error {

	st := state{
		U0:           g.u0,
		Kappa:        g.kappa,
		Eta:          g.eta,
		Nonlinearity: g.nl.TypeCode,
		Noise:        g.noise.TypeCode,
	}

	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(&st); err != nil {
		gz.Close()
		return fmt.Errorf("glm: cannot encode model: %w", err)
	}

	return gz.Close()
}

// Load reads a model written by Save.
func Load(r io.Reader) (*GLM, error) {

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("glm: cannot read model: %w", err)
	}
	defer gz.Close()

	var st state
	if err := gob.NewDecoder(gz).Decode(&st); err != nil {
		return nil, fmt.Errorf("glm: cannot decode model: %w", err)
	}

	return New(&Config{
		U0:           st.U0,
		Kappa:        st.Kappa,
		Eta:          st.Eta,
		Nonlinearity: st.Nonlinearity,
		Noise:        st.Noise,
	})
}

// SaveFile writes the model to the named file.
func (g *GLM) SaveFile(fname string) error {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}

	if err := g.Save(fid); err != nil {
		fid.Close()
		return err
	}

	return fid.Close()
}

// ReadFile reads a model from a file written by SaveFile.
func ReadFile(fname string) (*GLM, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	return Load(fid)
}
