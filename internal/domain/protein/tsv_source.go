package protein

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// HINT column names.
const (
	ColumnA = "Uniprot_A"
	ColumnB = "Uniprot_B"
)

// TSVPairSource reads positive pairs from a HINT-format, tab separated file.
// A header row naming Uniprot_A and Uniprot_B is required; other columns are
// ignored.
type TSVPairSource struct {
	path string
	open func(string) (io.ReadCloser, error)
}

// NewTSVPairSource returns a source reading path.
func NewTSVPairSource(path string) *TSVPairSource {
	return &TSVPairSource{path: path, open: func(p string) (io.ReadCloser, error) { return os.Open(p) }}
}

func (s *TSVPairSource) Name() string { return "tsv" }

// LoadPairs parses the file.  Missing file is ErrCodePairSourceUnavailable.
func (s *TSVPairSource) LoadPairs(ctx context.Context) ([]interaction.Pair, error) {
	f, err := s.open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePairSourceUnavailable, "open pairs file").
			WithDetail(s.path)
	}
	defer f.Close()
	return ParsePairsTSV(ctx, f)
}

// ParsePairsTSV parses HINT-format rows from r.  Rows with an empty
// accession in either column are skipped.
func ParsePairsTSV(ctx context.Context, r io.Reader) ([]interaction.Pair, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	colA, colB := -1, -1
	var pairs []interaction.Pair
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if colA < 0 {
			for i, c := range cols {
				switch strings.TrimSpace(c) {
				case ColumnA:
					colA = i
				case ColumnB:
					colB = i
				}
			}
			if colA < 0 || colB < 0 {
				return nil, errors.Newf(errors.ErrCodeDataSourceParseError,
					"pairs header must contain %s and %s columns", ColumnA, ColumnB)
			}
			continue
		}
		if colA >= len(cols) || colB >= len(cols) {
			return nil, errors.Newf(errors.ErrCodeDataSourceParseError, "pairs line %d: too few columns", line)
		}
		a, b := NormalizeAccession(cols[colA]), NormalizeAccession(cols[colB])
		if a == "" || b == "" {
			continue
		}
		pairs = append(pairs, interaction.Observed(a, b))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "read pairs")
	}
	if colA < 0 {
		return nil, errors.New(errors.ErrCodeDataSourceParseError, "pairs file is empty")
	}
	return pairs, nil
}

//Personal.AI order the ending
