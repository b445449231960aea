package definitions

// RulesFile is the YAML document read by the -config flag.
//
//	digest: SHA256
//	policy:
//	  mode: standard
//	  exclude_suffixes: [".sha1"]
//	ignored_archives: ["vendor-"]
//	filename_overrides:
//	  strip_prefixes: ["classpath/"]
//	  paths:
//	    lib/new-name.jar: lib/old-name.jar
type RulesFile struct {
	Digest            string          `yaml:"digest"`
	Policy            PolicySection   `yaml:"policy"`
	IgnoredArchives   []string        `yaml:"ignored_archives"`
	FilenameOverrides OverrideSection `yaml:"filename_overrides"`
}

type PolicySection struct {
	Mode            string   `yaml:"mode"`
	ExcludeSuffixes []string `yaml:"exclude_suffixes"`
	ExcludePrefixes []string `yaml:"exclude_prefixes"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type OverrideSection struct {
	// StripPrefixes is nil when the key is absent, which keeps the default
	// prefixes. An explicit empty list disables stripping.
	StripPrefixes *[]string         `yaml:"strip_prefixes"`
	Paths         map[string]string `yaml:"paths"`
}
