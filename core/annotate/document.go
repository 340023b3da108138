package annotate

import (
	"context"
	"io"

	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/FocuswithJustin/JuniperTimex/core/xml"
	"github.com/FocuswithJustin/JuniperTimex/internal/fileutil"
	"github.com/FocuswithJustin/JuniperTimex/internal/logging"
)

// AnnotateElement annotates el's leading text and the trailing text of
// each of its children. Child subtrees are not entered, and the content of
// marker children is left alone.
func (a *Annotator) AnnotateElement(ctx context.Context, el *xml.Node) error {
	var st Stats
	err := a.annotateElement(ctx, el, &st)
	a.totals.Add(st)
	return err
}

func (a *Annotator) annotateElement(ctx context.Context, el *xml.Node, st *Stats) error {
	original := el.Len()

	cursor, err := a.annotateSegment(ctx, el, xml.Leading, st)
	if err != nil {
		return err
	}

	// Each original child sits right after the cursor returned for the
	// previous segment, so inserted markers are never visited.
	for i, k := cursor+1, 0; k < original; k++ {
		if el.Child(i).IsMarker() {
			st.SkippedMarkers++
		}
		cursor, err = a.annotateSegment(ctx, el, i, st)
		if err != nil {
			return err
		}
		i = cursor + 1
	}
	return nil
}

// AnnotateDocument annotates every element selected by the configured
// XPath, in document order. Selected markers are skipped.
func (a *Annotator) AnnotateDocument(ctx context.Context, doc *xml.Document) (Stats, error) {
	var st Stats
	defer func() { a.totals.Add(st) }()

	log := logging.LoggerFromContext(ctx, a.cfg.Logger)
	for _, target := range doc.Select(a.query) {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if target.IsMarker() {
			st.SkippedMarkers++
			continue
		}
		before := st.Markers
		if err := a.annotateElement(ctx, target, &st); err != nil {
			return st, errors.Wrapf(err, "annotating <%s>", target.QName())
		}
		st.Targets++
		log.Debug("target annotated",
			"element", target.QName(),
			"markers", st.Markers-before,
		)
	}
	return st, nil
}

// AnnotateReader parses XML from r, annotates it and writes the result to
// w. Nothing is written when parsing or annotation fails.
func (a *Annotator) AnnotateReader(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Stats{}, errors.NewIO("read", "", err)
	}
	out, st, err := a.annotateBytes(ctx, "", data)
	if err != nil {
		return st, err
	}
	if _, err := w.Write(out); err != nil {
		return st, errors.NewIO("write", "", err)
	}
	return st, nil
}

// AnnotateString annotates an XML document held in a string.
func (a *Annotator) AnnotateString(ctx context.Context, s string) (string, error) {
	out, _, err := a.annotateBytes(ctx, "", []byte(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// AnnotateFile annotates the document at in and writes it to out,
// creating missing parent directories. xz or gzip input is decompressed;
// an out path ending in .xz or .gz is compressed.
func (a *Annotator) AnnotateFile(ctx context.Context, in, out string) error {
	_, err := a.AnnotateFileStats(ctx, in, out)
	return err
}

// AnnotateFileStats is AnnotateFile returning the document statistics.
func (a *Annotator) AnnotateFileStats(ctx context.Context, in, out string) (Stats, error) {
	data, err := fileutil.ReadDocument(in)
	if err != nil {
		return Stats{}, errors.NewIO("read", in, err)
	}
	result, st, err := a.annotateBytes(ctx, in, data)
	if err != nil {
		return st, err
	}
	if err := fileutil.WriteFile(out, result); err != nil {
		return st, errors.NewIO("write", out, err)
	}
	return st, nil
}

func (a *Annotator) annotateBytes(ctx context.Context, source string, data []byte) ([]byte, Stats, error) {
	doc, err := xml.ParseWithOptions(data, xml.Options{MarkerName: a.cfg.MarkerName})
	if err != nil {
		perr := errors.NewParse("xml", source, err.Error())
		perr.Err = err
		return nil, Stats{}, perr
	}

	st, err := a.AnnotateDocument(ctx, doc)
	if err != nil {
		return nil, st, err
	}

	return doc.Serialize(), st, nil
}
