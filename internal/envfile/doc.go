// Package envfile reads and patches dotenv files.
//
// Values are read with godotenv. Patching is line oriented: only the value of
// the first line defining a key is replaced and every other byte of the file is
// preserved, including comments, quoting style, and line endings.
package envfile
