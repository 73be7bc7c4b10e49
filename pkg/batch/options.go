package batch

import (
	"sort"

	"github.com/jessevdk/go-flags"
)

// submitOptions is the table of flags accepted in #FLUX: directives. It
// mirrors the job shaping and submission options of flux batch.
type submitOptions struct {
	Nodes        int      `short:"N" long:"nodes" description:"Number of nodes to allocate"`
	Ntasks       int      `short:"n" long:"ntasks" description:"Number of tasks to start"`
	CoresPerTask int      `short:"c" long:"cores-per-task" description:"Number of cores to allocate per task"`
	GpusPerTask  int      `short:"g" long:"gpus-per-task" description:"Number of GPUs to allocate per task"`
	TimeLimit    string   `short:"t" long:"time-limit" description:"Time limit in Flux Standard Duration"`
	Queue        string   `short:"q" long:"queue" description:"Submit the job to a specific queue"`
	Bank         string   `short:"B" long:"bank" description:"Submit the job to a specific bank"`
	Exclusive    bool     `short:"x" long:"exclusive" description:"Allocate nodes exclusively"`
	Setopt       []string `short:"o" long:"setopt" description:"Set shell option KEY[=VAL]"`
	Setattr      []string `short:"S" long:"setattr" description:"Set jobspec attribute KEY[=VAL]"`
	Unbuffered   bool     `short:"u" long:"unbuffered" description:"Disable output buffering"`
	LabelIO      bool     `short:"l" long:"label-io" description:"Label output with task ranks"`
	JobName      string   `long:"job-name" description:"Set an alternate job name"`
	Output       string   `long:"output" description:"Redirect job stdout to a file"`
	Error        string   `long:"error" description:"Redirect job stderr to a file"`
	Input        string   `long:"input" description:"Read job stdin from a file"`
	Cwd          string   `long:"cwd" description:"Set the working directory of the job"`
	Env          []string `long:"env" description:"Control environment propagation"`
	EnvRemove    []string `long:"env-remove" description:"Remove environment variables matching a pattern"`
	EnvFile      []string `long:"env-file" description:"Read environment rules from a file"`
	Rlimit       []string `long:"rlimit" description:"Control resource limit propagation"`
	Dependency   []string `long:"dependency" description:"Set a dependency on another job"`
	Requires     []string `long:"requires" description:"Require resources with matching properties"`
	BeginTime    string   `long:"begin-time" description:"Defer the job until the given time"`
	Urgency      int      `long:"urgency" description:"Set job urgency (0-31)"`
	Nslots       int      `long:"nslots" description:"Number of task slots to allocate"`
	Cores        int      `long:"cores" description:"Number of cores to allocate"`
	TasksPerNode int      `long:"tasks-per-node" description:"Number of tasks per node"`
	TasksPerCore int      `long:"tasks-per-core" description:"Number of tasks per core"`
	GpusPerNode  int      `long:"gpus-per-node" description:"Number of GPUs per node"`
	CoresPerSlot int      `long:"cores-per-slot" description:"Number of cores per slot"`
	GpusPerSlot  int      `long:"gpus-per-slot" description:"Number of GPUs per slot"`
	Flags        []string `long:"flags" description:"Set submission flags"`
	Conf         []string `long:"conf" description:"Set instance configuration"`
	BrokerOpts   []string `long:"broker-opts" description:"Pass options to the subinstance brokers"`
	AddFile      []string `long:"add-file" description:"Add a file to the job"`
	Signal       string   `long:"signal" description:"Send a signal before the time limit"`
	Taskmap      string   `long:"taskmap" description:"Select the task mapping scheme"`
	Quiet        bool     `long:"quiet" description:"Suppress the jobid on submission"`
}

// positiveFlags must carry an integer >= 1.
var positiveFlags = map[string]bool{
	"nodes": true, "ntasks": true, "cores-per-task": true, "gpus-per-task": true,
	"nslots": true, "cores": true, "tasks-per-node": true, "tasks-per-core": true,
	"gpus-per-node": true, "cores-per-slot": true, "gpus-per-slot": true,
}

const maxUrgency = 31

func newParser(opts *submitOptions) *flags.Parser {
	p := flags.NewNamedParser("flux batch", flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := p.AddGroup("Directives", "", opts); err != nil {
		// the option table is static; a failure here is a programming error
		panic(err)
	}
	return p
}

// Flags lists every recognized long flag name.
func Flags() []string {
	p := newParser(&submitOptions{})
	var out []string
	for _, g := range p.Groups() {
		for _, o := range g.Options() {
			out = append(out, o.LongName)
		}
	}
	sort.Strings(out)
	return out
}
