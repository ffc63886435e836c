package vault

// Merge applies the merge-on-update rule. For every submitted field whose
// value equals the masked representation of the previously stored value,
// the stored plaintext is substituted; all other submitted values win as-is.
// Pure: no I/O, inputs are not mutated.
//
// This keeps a client that only ever saw masked credentials from wiping a
// real secret by echoing the placeholder back on update.
func Merge(storedPlain, storedMasked, submitted map[string]string) map[string]string {
	merged := make(map[string]string, len(submitted))
	for name, value := range submitted {
		if masked, ok := storedMasked[name]; ok && value == masked {
			if plain, ok := storedPlain[name]; ok {
				merged[name] = plain
				continue
			}
		}
		merged[name] = value
	}
	return merged
}
