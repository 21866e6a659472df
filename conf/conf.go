// Package conf defines the on-disk configuration shape, decoded by
// contrib/config from YAML via gopkg.in/yaml.v3 and go-viper/mapstructure.
package conf

import (
	"time"

	"github.com/omalloc/reqbody/body"
)

type Bootstrap struct {
	Strict   bool    `json:"strict" yaml:"strict"`
	Hostname string  `json:"hostname" yaml:"hostname"`
	PidFile  string  `json:"pidfile" yaml:"pidfile"`
	Logger   *Logger `json:"logger" yaml:"logger"`
	Server   *Server `json:"server" yaml:"server"`
	Body     *Body   `json:"body" yaml:"body"`
	Audit    *Audit  `json:"audit" yaml:"audit"`
}

type Logger struct {
	Level      string `json:"level" yaml:"level"`
	Path       string `json:"path" yaml:"path"`
	Caller     bool   `json:"caller" yaml:"caller"`
	TraceID    bool   `json:"traceid" yaml:"traceid"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress"`
	NoPid      bool   `json:"nopid" yaml:"nopid"`
}

type Server struct {
	Addr              string        `json:"addr" yaml:"addr"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	MaxHeaderBytes    int           `json:"max_header_bytes" yaml:"max_header_bytes"`
	PProf             *ServerPProf  `json:"pprof" yaml:"pprof"`
}

type ServerPProf struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Body maps directly onto body.Policy; it is the CLI/config surface named
// in spec §6.
type Body struct {
	InFileOnly           bool          `json:"client_body_in_file_only" yaml:"client_body_in_file_only"`
	InSingleBuf          bool          `json:"client_body_in_single_buffer" yaml:"client_body_in_single_buffer"`
	GroupAccess          bool          `json:"client_body_in_file_group_access" yaml:"client_body_in_file_group_access"`
	Persistent           bool          `json:"persistent" yaml:"persistent"`
	Clean                bool          `json:"clean" yaml:"clean"`
	ClientBodyBufferSize int           `json:"client_body_buffer_size" yaml:"client_body_buffer_size"`
	ClientBodyTimeout    time.Duration `json:"client_body_timeout" yaml:"client_body_timeout"`
	ClientBodyTempPath   string        `json:"client_body_temp_path" yaml:"client_body_temp_path"`
	LingeringTime        time.Duration `json:"lingering_time" yaml:"lingering_time"`
	LingeringTimeout     time.Duration `json:"lingering_timeout" yaml:"lingering_timeout"`
	SpillBlockSize       int           `json:"spill_block_size" yaml:"spill_block_size"`
}

// Audit configures the ingestion audit trail (SPEC_FULL.md §5.6).
type Audit struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Path      string `json:"path" yaml:"path"`
	BlockSize int    `json:"block_size" yaml:"block_size"`
}

// Policy translates the decoded config into the body package's runtime
// Policy, falling back to body.DefaultPolicy for a nil receiver.
func (b *Body) Policy() *body.Policy {
	p := body.DefaultPolicy()
	if b == nil {
		return p
	}
	p.InFileOnly = b.InFileOnly
	p.InSingleBuf = b.InSingleBuf
	p.GroupAccess = b.GroupAccess
	p.Persistent = b.Persistent
	p.Clean = b.Clean
	if b.ClientBodyBufferSize > 0 {
		p.ClientBodyBufferSize = b.ClientBodyBufferSize
	}
	if b.ClientBodyTimeout > 0 {
		p.ClientBodyTimeout = b.ClientBodyTimeout
	}
	if b.ClientBodyTempPath != "" {
		p.ClientBodyTempPath = b.ClientBodyTempPath
	}
	if b.LingeringTime > 0 {
		p.LingeringTime = b.LingeringTime
	}
	if b.LingeringTimeout > 0 {
		p.LingeringTimeout = b.LingeringTimeout
	}
	if b.SpillBlockSize > 0 {
		p.SpillBlockSize = b.SpillBlockSize
	}
	return p
}
