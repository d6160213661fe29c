package envfile

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/ss5upgrade/internal/utils"
)

const (
	emptyStringConstant                    = ""
	exportPrefixConstant                   = "export "
	commentPrefixConstant                  = "#"
	assignmentSeparatorConstant            = "="
	lineSeparatorConstant                  = "\n"
	carriageReturnConstant                 = "\r"
	doubleQuoteConstant                    = '"'
	singleQuoteConstant                    = '\''
	escapeCharacterConstant                = '\\'
	commentCharacterConstant               = '#'
	horizontalWhitespaceConstant           = " \t"
	quotingCharactersConstant              = " \t#\"'"
	assignmentTemplateConstant             = "%s=%s"
	quotedValueTemplateConstant            = "%c%s%c"
	defaultFilePermissionsConstant         = os.FileMode(0o644)
	notFoundMessageConstant                = "environment file not found"
	fileSystemNotConfiguredMessageConstant = "environment editor file system not configured"
	readErrorTemplateConstant              = "failed to read environment file %s: %w"
	parseErrorTemplateConstant             = "failed to parse environment file %s: %w"
	writeErrorTemplateConstant             = "failed to write environment file %s: %w"
	notFoundTemplateConstant               = "%w: %s"
	valueReplacedLogMessageConstant        = "environment value replaced"
	valueUnchangedLogMessageConstant       = "environment value left unchanged"
	logFieldPathConstant                   = "path"
	logFieldKeyConstant                    = "key"
)

var (
	// ErrNotFound indicates the environment file does not exist.
	ErrNotFound = errors.New(notFoundMessageConstant)
	// ErrFileSystemNotConfigured indicates an Editor constructed without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
)

// Parse decodes dotenv content into a key/value map. Later definitions of a key win.
func Parse(content string) (map[string]string, error) {
	return godotenv.Unmarshal(content)
}

// Patch sets each key in updates. The first line defining a key has its value
// replaced in place and later definitions of that key are removed; keys that
// are not defined are appended. All other lines are returned unchanged.
func Patch(content string, updates map[string]string) string {
	lines := []string{}
	if len(content) > 0 {
		lines = strings.Split(content, lineSeparatorConstant)
	}

	updateKeys := make([]string, 0, len(updates))
	for key := range updates {
		updateKeys = append(updateKeys, key)
	}
	sort.Strings(updateKeys)

	for _, key := range updateKeys {
		lines = patchKey(lines, key, updates[key])
	}
	return strings.Join(lines, lineSeparatorConstant)
}

func patchKey(lines []string, key string, value string) []string {
	firstIndex := -1
	patched := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		lineKey, valueStart, valueEnd, isAssignment := locateAssignment(line)
		if !isAssignment || lineKey != key {
			patched = append(patched, line)
			continue
		}
		if firstIndex >= 0 {
			continue
		}
		firstIndex = len(patched)
		patched = append(patched, line[:valueStart]+encodeValueLike(line[valueStart:valueEnd], value)+line[valueEnd:])
	}
	if firstIndex >= 0 {
		return patched
	}

	assignment := fmt.Sprintf(assignmentTemplateConstant, key, encodeValueLike(emptyStringConstant, value))
	if len(patched) == 0 {
		return []string{assignment, emptyStringConstant}
	}
	if patched[len(patched)-1] == emptyStringConstant {
		return append(patched[:len(patched)-1], assignment, emptyStringConstant)
	}
	return append(patched, assignment)
}

// locateAssignment finds the key of a KEY=VALUE line and the byte range of its
// value, including surrounding quotes.
func locateAssignment(line string) (string, int, int, bool) {
	trimmedLine := strings.TrimLeft(line, horizontalWhitespaceConstant)
	if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, commentPrefixConstant) {
		return emptyStringConstant, 0, 0, false
	}
	offset := len(line) - len(trimmedLine)
	if strings.HasPrefix(trimmedLine, exportPrefixConstant) {
		withoutExport := strings.TrimLeft(strings.TrimPrefix(trimmedLine, exportPrefixConstant), horizontalWhitespaceConstant)
		offset += len(trimmedLine) - len(withoutExport)
		trimmedLine = withoutExport
	}

	separatorIndex := strings.Index(trimmedLine, assignmentSeparatorConstant)
	if separatorIndex <= 0 {
		return emptyStringConstant, 0, 0, false
	}
	key := strings.TrimSpace(trimmedLine[:separatorIndex])
	if len(key) == 0 {
		return emptyStringConstant, 0, 0, false
	}

	valueStart := offset + separatorIndex + 1
	for valueStart < len(line) && strings.ContainsRune(horizontalWhitespaceConstant, rune(line[valueStart])) {
		valueStart++
	}
	valueEnd := findValueEnd(line, valueStart)
	return key, valueStart, valueEnd, true
}

func findValueEnd(line string, valueStart int) int {
	if valueStart >= len(line) {
		return len(line)
	}

	openingQuote := line[valueStart]
	if openingQuote == doubleQuoteConstant || openingQuote == singleQuoteConstant {
		for index := valueStart + 1; index < len(line); index++ {
			if openingQuote == doubleQuoteConstant && line[index] == escapeCharacterConstant {
				index++
				continue
			}
			if line[index] == openingQuote {
				return index + 1
			}
		}
		return len(strings.TrimRight(line, carriageReturnConstant))
	}

	valueEnd := len(strings.TrimRight(line, carriageReturnConstant))
	for index := valueStart; index < valueEnd; index++ {
		if line[index] == commentCharacterConstant && index > valueStart && strings.ContainsRune(horizontalWhitespaceConstant, rune(line[index-1])) {
			valueEnd = index
			break
		}
	}
	return valueStart + len(strings.TrimRight(line[valueStart:valueEnd], horizontalWhitespaceConstant))
}

// encodeValueLike renders value using the quoting style of the value it replaces.
func encodeValueLike(previous string, value string) string {
	if len(previous) > 0 && (previous[0] == doubleQuoteConstant || previous[0] == singleQuoteConstant) {
		quote := previous[0]
		escapedValue := value
		if quote == doubleQuoteConstant {
			escapedValue = strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `"`, `\"`)
		}
		return fmt.Sprintf(quotedValueTemplateConstant, quote, escapedValue, quote)
	}
	if strings.ContainsAny(value, quotingCharactersConstant) {
		escapedValue := strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `"`, `\"`)
		return fmt.Sprintf(quotedValueTemplateConstant, doubleQuoteConstant, escapedValue, doubleQuoteConstant)
	}
	return value
}

// Editor reads and patches dotenv files on a file system.
type Editor struct {
	fileSystem afero.Fs
	fileWriter *utils.AtomicFileWriter
	logger     *zap.Logger
}

// NewEditor constructs an Editor. A nil logger selects a no-op logger.
func NewEditor(fileSystem afero.Fs, logger *zap.Logger) (*Editor, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{fileSystem: fileSystem, fileWriter: utils.NewAtomicFileWriter(fileSystem), logger: logger}, nil
}

// Read parses the file at filePath. A missing file yields ErrNotFound.
func (editor *Editor) Read(filePath string) (map[string]string, error) {
	content, readError := editor.readContent(filePath)
	if readError != nil {
		return nil, readError
	}
	values, parseError := Parse(content)
	if parseError != nil {
		return nil, fmt.Errorf(parseErrorTemplateConstant, filePath, parseError)
	}
	return values, nil
}

// ReplaceValue rewrites key to replacement only when its current value equals
// expected. It reports whether the file changed; when it did not, the file is
// not written.
func (editor *Editor) ReplaceValue(filePath string, key string, expected string, replacement string) (bool, error) {
	content, readError := editor.readContent(filePath)
	if readError != nil {
		return false, readError
	}
	values, parseError := Parse(content)
	if parseError != nil {
		return false, fmt.Errorf(parseErrorTemplateConstant, filePath, parseError)
	}

	currentValue, defined := values[key]
	if !defined || currentValue != expected {
		editor.logger.Debug(valueUnchangedLogMessageConstant, zap.String(logFieldPathConstant, filePath), zap.String(logFieldKeyConstant, key))
		return false, nil
	}

	patchedContent := Patch(content, map[string]string{key: replacement})
	if writeError := editor.fileWriter.WriteFile(filePath, []byte(patchedContent), defaultFilePermissionsConstant); writeError != nil {
		return false, fmt.Errorf(writeErrorTemplateConstant, filePath, writeError)
	}

	editor.logger.Info(valueReplacedLogMessageConstant, zap.String(logFieldPathConstant, filePath), zap.String(logFieldKeyConstant, key))
	return true, nil
}

func (editor *Editor) readContent(filePath string) (string, error) {
	content, readError := afero.ReadFile(editor.fileSystem, filePath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return emptyStringConstant, fmt.Errorf(notFoundTemplateConstant, ErrNotFound, filePath)
		}
		return emptyStringConstant, fmt.Errorf(readErrorTemplateConstant, filePath, readError)
	}
	return string(content), nil
}
