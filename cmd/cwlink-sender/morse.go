package main

import "strings"

// morseTable is the char -> dot/dash lookup table for the automated
// text-to-CW sender path. Resolving a character to its element string is
// explicitly out of the core's scope (spec.md §1); it lives here in the
// driver, shaped after the character set of doismellburning-samoyed's
// src/morse.go MORSE table, expressed as an idiomatic Go map rather than a
// CGo-era slice of structs.
var morseTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '/': "-..-.", '=': "-...-",
}

// resolveText converts s into the per-character dot/dash sequence
// cw.BuildElements expects, using an empty string to mark a word boundary.
func resolveText(s string) []string {
	var out []string
	for _, word := range strings.Fields(strings.ToUpper(s)) {
		for _, r := range word {
			enc, ok := morseTable[r]
			if !ok {
				continue
			}
			out = append(out, enc)
		}
		out = append(out, "") // word boundary
	}
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
