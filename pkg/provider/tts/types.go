package tts

// VoiceProfile describes a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name. For cloned voices this is the
	// reconciled speaker name the voice was built for.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Cloned reports whether this voice was created by CloneVoice (as opposed
	// to a premade or library voice). Cloned voices may be deleted after a run.
	Cloned bool

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}
