package magic

// Engine classifies header and trailer samples against an ordered binary
// table and an ordered text table. An Engine is immutable and safe for
// concurrent use.
type Engine struct {
	binary []Rule
	text   []TextRule
}

type options struct {
	zip   Classification
	rules *RuleSet
}

// Option configures an Engine.
type Option func(*options)

// WithZipMIME sets the media type reported for Zip archives without a
// recognised specialization. The extension stays "zip".
func WithZipMIME(mime string) Option {
	return func(o *options) {
		if mime != "" {
			o.zip = Classification{Ext: ZipClassification.Ext, MIME: mime}
		}
	}
}

// WithRules places custom rules ahead of the built-in tables.
func WithRules(rs *RuleSet) Option {
	return func(o *options) {
		o.rules = rs
	}
}

// New creates an Engine. Without options it behaves exactly like Classify.
func New(opts ...Option) *Engine {
	o := options{zip: ZipClassification}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		binary: defaultBinaryRules,
		text:   defaultTextRules,
	}
	if o.zip != ZipClassification {
		e.binary = newBinaryCatalog(o.zip)
	}
	if o.rules != nil {
		e.binary = append(append([]Rule(nil), o.rules.Binary...), e.binary...)
		text := make([]TextRule, 0, len(o.rules.Text)+len(e.text))
		for _, r := range o.rules.Text {
			text = append(text, headerRule(r))
		}
		e.text = append(text, e.text...)
	}
	return e
}

// Classify partitions on IsBinary(header) and evaluates exactly one table.
// It never fails: input matching no rule gets OctetStream or PlainText.
func (e *Engine) Classify(header, trailer []byte) Result {
	if len(header) > SampleSize {
		header = header[:SampleSize]
	}
	if len(trailer) > SampleSize {
		trailer = trailer[len(trailer)-SampleSize:]
	}

	if IsBinary(header) {
		if c, name, ok := evaluate(e.binary, header); ok {
			return Result{Classification: c, Rule: name, Binary: true}
		}
		return Result{Classification: OctetStream, Rule: DefaultRule, Binary: true}
	}

	for _, r := range e.text {
		if c, ok := r.Detect(header, trailer); ok {
			return Result{Classification: c, Rule: r.Name}
		}
	}
	return Result{Classification: PlainText, Rule: DefaultRule}
}

// ClassifyBytes classifies a complete in-memory blob.
func (e *Engine) ClassifyBytes(b []byte) Result {
	return e.Classify(HeaderOf(b), TrailerOf(b))
}

// HeaderOf returns the first SampleSize bytes of b.
func HeaderOf(b []byte) []byte {
	if len(b) > SampleSize {
		return b[:SampleSize]
	}
	return b
}

// TrailerOf returns the last SampleSize bytes of b.
func TrailerOf(b []byte) []byte {
	if len(b) > SampleSize {
		return b[len(b)-SampleSize:]
	}
	return b
}

var defaultEngine = New()

// Default returns the Engine with the built-in tables.
func Default() *Engine {
	return defaultEngine
}

// Classify classifies samples with the built-in tables.
func Classify(header, trailer []byte) Result {
	return defaultEngine.Classify(header, trailer)
}

// ClassifyBytes classifies a complete in-memory blob with the built-in tables.
func ClassifyBytes(b []byte) Result {
	return defaultEngine.ClassifyBytes(b)
}
