package protein

import (
	"bufio"
	"io"
	"strings"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// FASTARecord is one entry of a FASTA document.
type FASTARecord struct {
	Header    string
	Accession Accession
	Sequence  Sequence
}

// ParseFASTA reads every record in r.  Sequence lines are joined, stripped of
// whitespace and upper-cased.  Text before the first header is treated as an
// anonymous record, which is how single-sequence responses without a header
// are handled.
func ParseFASTA(r io.Reader) ([]FASTARecord, error) {
	var (
		out []FASTARecord
		cur *FASTARecord
		sb  strings.Builder
	)
	flush := func() {
		if cur == nil && sb.Len() == 0 {
			return
		}
		if cur == nil {
			cur = &FASTARecord{}
		}
		cur.Sequence = strings.ToUpper(sb.String())
		out = append(out, *cur)
		cur = nil
		sb.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimSpace(line[1:])
			cur = &FASTARecord{Header: header, Accession: AccessionFromHeader(header)}
			continue
		}
		for _, f := range strings.Fields(line) {
			sb.WriteString(f)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "read fasta")
	}
	flush()
	return out, nil
}

// AccessionFromHeader extracts the accession from a FASTA header.  UniProt
// headers look like "sp|P12345|NAME_HUMAN description"; anything else yields
// the first whitespace separated token.
func AccessionFromHeader(header string) Accession {
	tok := header
	if i := strings.IndexAny(tok, " \t"); i >= 0 {
		tok = tok[:i]
	}
	if parts := strings.Split(tok, "|"); len(parts) >= 3 {
		tok = parts[1]
	}
	return NormalizeAccession(tok)
}

//Personal.AI order the ending
