package wizard

// StepName identifies a wizard step
type StepName string

const (
	StepInfo     StepName = "info"
	StepPhoto    StepName = "photo"
	StepPreview  StepName = "preview"
	StepPrinting StepName = "printing"
	StepComplete StepName = "complete"
)

// ProgressStep is the printing progress increment per tick
const ProgressStep = 10

// Step is one of Info, Photo, Preview, Printing or Complete
type Step interface {
	Name() StepName
	sealed()
}

// Info shows the visitor profile for confirmation
type Info struct{}

// Photo waits for a capture. Error carries the inline message of the last
// failed generation attempt.
type Photo struct {
	Error string
}

// Preview shows the composited badge
type Preview struct{}

// Printing runs the simulated print progress, 0 to 100
type Printing struct {
	Progress int
}

// Complete is terminal
type Complete struct{}

func (Info) Name() StepName     { return StepInfo }
func (Photo) Name() StepName    { return StepPhoto }
func (Preview) Name() StepName  { return StepPreview }
func (Printing) Name() StepName { return StepPrinting }
func (Complete) Name() StepName { return StepComplete }

func (Info) sealed()     {}
func (Photo) sealed()    {}
func (Preview) sealed()  {}
func (Printing) sealed() {}
func (Complete) sealed() {}
