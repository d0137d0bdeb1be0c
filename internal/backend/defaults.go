package backend

// Family names known to the default registry.
const (
	FamilyWaifu2x   = "waifu2x"
	FamilySRMD      = "srmd"
	FamilyRealSR    = "realsr"
	FamilyRealCUGAN = "realcugan"
	FamilySuperRes  = "superres"
	FamilyResample  = "resample"
)

// DefaultExecutables are the command names used when no executable is
// configured for a family.
var DefaultExecutables = map[string]string{
	FamilyWaifu2x:   "waifu2x-ncnn-vulkan",
	FamilySRMD:      "srmd-ncnn-vulkan",
	FamilyRealSR:    "realsr-ncnn-vulkan",
	FamilyRealCUGAN: "realcugan-ncnn-vulkan",
}

// CommandConfig overrides the executable and extra arguments of a family.
type CommandConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// DefaultRegistry builds the standard algorithm table. overrides is keyed by
// family name; tempDir is where command backends stage their PNG files.
func DefaultRegistry(overrides map[string]CommandConfig, tempDir string) *Registry {
	command := func(family string, noise bool) Family {
		opts := CommandOptions{
			Executable: DefaultExecutables[family],
			NoiseFlag:  noise,
			TempDir:    tempDir,
		}
		if o, ok := overrides[family]; ok {
			if o.Command != "" {
				opts.Executable = o.Command
			}
			opts.ExtraArgs = o.Args
		}
		return Family{
			Name:  family,
			New:   NewCommandConstructor(family, opts),
			Check: func() error { return opts.Check(family) },
		}
	}
	withRatios := func(f Family, ratios ...int) Family {
		f.Ratios = ratios
		return f
	}

	superres := command(FamilySuperRes, false)
	superres.Models = map[string][]int{
		"edsr":   {2, 3, 4},
		"espcn":  {2, 3, 4},
		"fsrcnn": {2, 3, 4},
		"lapsrn": {2, 4, 8},
	}

	return NewRegistry(
		withRatios(command(FamilyWaifu2x, true), 1, 2),
		withRatios(command(FamilySRMD, true), 2, 3, 4),
		withRatios(command(FamilyRealSR, false), 4),
		withRatios(command(FamilyRealCUGAN, true), 1, 2, 3, 4),
		superres,
		Family{Name: FamilyResample, Ratios: []int{2, 3, 4}, New: NewResample},
	)
}
