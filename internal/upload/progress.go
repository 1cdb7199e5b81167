package upload

import (
	"io"
	"math"
)

// ProgressFunc receives whole percentages in 0..100.
type ProgressFunc func(percent int)

// Percent rounds done/total to the nearest whole percentage.
func Percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(done) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// progressReader reports each new percentage once, in increasing order.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	onChange ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, last: -1, onChange: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onChange != nil {
		if pct := Percent(p.read, p.total); pct > p.last {
			p.last = pct
			p.onChange(pct)
		}
	}
	return n, err
}
