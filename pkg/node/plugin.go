package node

import (
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/iotaledger/hive.go/configuration"
	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/logger"
)

// PluginParams defines the parameters configuration of a plugin.
type PluginParams struct {
	// The parameters of the plugin under the defined configuration.
	Params map[string]*flag.FlagSet
	// The configuration values to mask.
	Masked []string
}

// Pluggable is something which extends the Node's capabilities.
type Pluggable struct {
	// A reference to the Node instance.
	Node *Node
	// The name of the plugin.
	Name string
	// The config parameters for this plugin.
	Params *PluginParams
	// The function to call to initialize the plugin dependencies.
	DepsFunc interface{}
	// InitConfigPars gets called in the init stage of node initialization.
	// This can be used to provide config parameters even if the pluggable is disabled.
	InitConfigPars ProvideFunc
	// Provide gets called in the provide stage of node initialization.
	Provide ProvideFunc
	// Configure gets called in the configure stage of node initialization.
	Configure Callback
	// Run gets called in the run stage of node initialization.
	Run Callback

	logOnce sync.Once
	log     *logger.Logger
}

// Daemon returns the daemon of the Node.
func (p *Pluggable) Daemon() daemon.Daemon {
	return p.Node.Daemon()
}

// Logger returns the logger of the plugin, named after it.
func (p *Pluggable) Logger() *logger.Logger {
	p.logOnce.Do(func() {
		p.log = logger.NewLogger(p.Name)
	})
	return p.log
}

// LogDebugf uses fmt.Sprintf to construct and log a message.
func (p *Pluggable) LogDebugf(template string, args ...interface{}) {
	p.Logger().Debugf(template, args...)
}

// LogInfo uses fmt.Sprint to construct and log a message.
func (p *Pluggable) LogInfo(args ...interface{}) {
	p.Logger().Info(args...)
}

// LogInfof uses fmt.Sprintf to construct and log a message.
func (p *Pluggable) LogInfof(template string, args ...interface{}) {
	p.Logger().Infof(template, args...)
}

// LogWarn uses fmt.Sprint to construct and log a message.
func (p *Pluggable) LogWarn(args ...interface{}) {
	p.Logger().Warn(args...)
}

// LogWarnf uses fmt.Sprintf to construct and log a message.
func (p *Pluggable) LogWarnf(template string, args ...interface{}) {
	p.Logger().Warnf(template, args...)
}

// LogErrorf uses fmt.Sprintf to construct and log a message.
func (p *Pluggable) LogErrorf(template string, args ...interface{}) {
	p.Logger().Errorf(template, args...)
}

// LogPanic uses fmt.Sprint to construct and log a message, then panics.
func (p *Pluggable) LogPanic(args ...interface{}) {
	p.Logger().Panic(args...)
}

// LogPanicf uses fmt.Sprintf to construct and log a message, then panics.
func (p *Pluggable) LogPanicf(template string, args ...interface{}) {
	p.Logger().Panicf(template, args...)
}

// InitPlugin is the module initializing configuration of the node.
// A Node can only have one of such modules.
type InitPlugin struct {
	Pluggable
	// Init gets called in the initialization stage of the node.
	Init InitFunc
	// The configs this InitPlugin brings to the node.
	Configs map[string]*configuration.Configuration
}

// CorePlugin is a plugin essential for node operation.
// It can not be disabled.
type CorePlugin struct {
	Pluggable
}

const (
	Disabled = iota
	Enabled
)

// Plugin is a plugin which can be enabled or disabled via the configuration.
type Plugin struct {
	Pluggable
	// The status of the plugin.
	Status int
}

// GetIdentifier returns the name of the plugin as used in the plugin configuration.
func (p *Plugin) GetIdentifier() string {
	return identifier(p.Name)
}

// plugin names in the configuration are case and space insensitive.
func identifier(name string) string {
	return strings.ToLower(strings.Replace(name, " ", "", -1))
}
