package usecase

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const defaultReloadTimeout = 5 * time.Second

type options struct {
	log           logrus.FieldLogger
	recorder      ports.Recorder
	nowFunc       func() time.Time
	hashParams    *argon2id.Params
	reloadTimeout time.Duration
}

// OptArgs are the optional arguments shared by the use-cases of this package.
type OptArgs = func(*options)

// WithLogger overrides the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) OptArgs {
	return func(o *options) {
		o.log = log
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder ports.Recorder) OptArgs {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) OptArgs {
	return func(o *options) {
		o.nowFunc = nowFunc
	}
}

// WithHashParams overrides the argon2id parameters used to hash passwords.
func WithHashParams(params *argon2id.Params) OptArgs {
	return func(o *options) {
		o.hashParams = params
	}
}

// WithReloadTimeout bounds the reloads triggered by identity changes and external writes.
func WithReloadTimeout(d time.Duration) OptArgs {
	return func(o *options) {
		o.reloadTimeout = d
	}
}

func newOptions(optArgs []OptArgs) options {
	o := options{
		log:           logrus.StandardLogger(),
		recorder:      ports.NopRecorder{},
		nowFunc:       func() time.Time { return time.Now().UTC() },
		hashParams:    argon2id.DefaultParams,
		reloadTimeout: defaultReloadTimeout,
	}
	for _, opt := range optArgs {
		opt(&o)
	}
	return o
}
