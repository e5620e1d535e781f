package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CredentialStore = (*MemoryCredentialStore)(nil)
	_ CredentialCodec = JSONCredentialCodec{}
	_ CredentialCodec = CompactCredentialCodec{}
	_ LoggerProvider  = glog.ProviderFromLogger(glog.Nop())
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ RawConfigLoader = EnvConfigLoader{}
	_ RawConfigLoader = StaticConfigLoader{}
	_ OptionsResolver = GoOptionsResolver{}
)
