package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	requireKeyConstant                    = "require"
	requireDevKeyConstant                 = "require-dev"
	emptyStringConstant                   = ""
	indentationConstant                   = "    "
	nullLiteralConstant                   = "null"
	documentNotObjectMessageConstant      = "document is not a JSON object"
	documentEmptyMessageConstant          = "document has no keys"
	documentTrailingDataMessageConstant   = "unexpected data after the top-level object"
	unexpectedTokenTemplateConstant       = "unexpected token %v"
	packageListNotObjectTemplateConstant  = "%q must be an object of package constraints"
	packageConstraintTypeTemplateConstant = "%q constraint for %q must be a string or null"
	fieldDecodeTemplateConstant           = "field %q: %w"
)

var (
	errDocumentNotObject    = errors.New(documentNotObjectMessageConstant)
	errDocumentEmpty        = errors.New(documentEmptyMessageConstant)
	errDocumentTrailingData = errors.New(documentTrailingDataMessageConstant)
)

type documentField struct {
	key   string
	value json.RawMessage
}

// Manifest is a decoded composer.json. Required and RequiredDev mirror the
// require and require-dev objects; every other top-level key is retained in
// document order and written back unchanged.
type Manifest struct {
	Required    PackageList
	RequiredDev PackageList
	fields      []documentField
}

// Keys returns the top-level keys in the order they will be written.
func (manifest Manifest) Keys() []string {
	keys := make([]string, 0, len(manifest.fields)+2)
	hasRequired := false
	hasRequiredDev := false
	for _, field := range manifest.fields {
		keys = append(keys, field.key)
		switch field.key {
		case requireKeyConstant:
			hasRequired = true
		case requireDevKeyConstant:
			hasRequiredDev = true
		}
	}
	if !hasRequired && manifest.Required != nil {
		keys = append(keys, requireKeyConstant)
	}
	if !hasRequiredDev && manifest.RequiredDev != nil {
		keys = append(keys, requireDevKeyConstant)
	}
	return keys
}

// Field returns the compact JSON value retained for a top-level key other than
// require and require-dev.
func (manifest Manifest) Field(key string) (json.RawMessage, bool) {
	for _, field := range manifest.fields {
		if field.key == key && key != requireKeyConstant && key != requireDevKeyConstant {
			return append(json.RawMessage{}, field.value...), true
		}
	}
	return nil, false
}

// Decode parses composer.json content. Anything other than a non-empty JSON
// object is rejected.
func Decode(content []byte) (Manifest, error) {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()

	openingToken, tokenError := decoder.Token()
	if tokenError != nil {
		return Manifest{}, tokenError
	}
	if delimiter, isDelimiter := openingToken.(json.Delim); !isDelimiter || delimiter != '{' {
		return Manifest{}, errDocumentNotObject
	}

	manifest := Manifest{}
	for decoder.More() {
		keyToken, keyError := decoder.Token()
		if keyError != nil {
			return Manifest{}, keyError
		}
		key, isString := keyToken.(string)
		if !isString {
			return Manifest{}, fmt.Errorf(unexpectedTokenTemplateConstant, keyToken)
		}

		var rawValue json.RawMessage
		if decodeError := decoder.Decode(&rawValue); decodeError != nil {
			return Manifest{}, fmt.Errorf(fieldDecodeTemplateConstant, key, decodeError)
		}
		normalizedValue, normalizeError := normalizeValue(rawValue)
		if normalizeError != nil {
			return Manifest{}, fmt.Errorf(fieldDecodeTemplateConstant, key, normalizeError)
		}

		switch key {
		case requireKeyConstant:
			packages, packagesError := decodePackageList(key, normalizedValue)
			if packagesError != nil {
				return Manifest{}, packagesError
			}
			manifest.Required = packages
		case requireDevKeyConstant:
			packages, packagesError := decodePackageList(key, normalizedValue)
			if packagesError != nil {
				return Manifest{}, packagesError
			}
			manifest.RequiredDev = packages
		}
		manifest.fields = setField(manifest.fields, documentField{key: key, value: normalizedValue})
	}

	if _, closingError := decoder.Token(); closingError != nil {
		return Manifest{}, closingError
	}
	if _, trailingError := decoder.Token(); !errors.Is(trailingError, io.EOF) {
		return Manifest{}, errDocumentTrailingData
	}
	if len(manifest.fields) == 0 {
		return Manifest{}, errDocumentEmpty
	}

	return manifest, nil
}

// Encode renders the manifest with four-space indentation, unescaped slashes
// and non-ASCII text, original key order, and a trailing newline.
func Encode(manifest Manifest) ([]byte, error) {
	var compactBuffer bytes.Buffer
	compactBuffer.WriteByte('{')
	for index, key := range manifest.Keys() {
		if index > 0 {
			compactBuffer.WriteByte(',')
		}
		writeString(&compactBuffer, key)
		compactBuffer.WriteByte(':')
		switch key {
		case requireKeyConstant:
			writePackageList(&compactBuffer, manifest.Required)
		case requireDevKeyConstant:
			writePackageList(&compactBuffer, manifest.RequiredDev)
		default:
			value, _ := manifest.Field(key)
			compactBuffer.Write(value)
		}
	}
	compactBuffer.WriteByte('}')

	var indentedBuffer bytes.Buffer
	if indentError := json.Indent(&indentedBuffer, compactBuffer.Bytes(), emptyStringConstant, indentationConstant); indentError != nil {
		return nil, indentError
	}
	indentedBuffer.WriteByte('\n')
	return indentedBuffer.Bytes(), nil
}

func setField(fields []documentField, field documentField) []documentField {
	for index := range fields {
		if fields[index].key == field.key {
			fields[index].value = field.value
			return fields
		}
	}
	return append(fields, field)
}

func decodePackageList(key string, value json.RawMessage) (PackageList, error) {
	decoder := json.NewDecoder(bytes.NewReader(value))
	openingToken, tokenError := decoder.Token()
	if tokenError != nil {
		return nil, tokenError
	}
	if openingToken == nil {
		return PackageList{}, nil
	}
	delimiter, isDelimiter := openingToken.(json.Delim)
	if isDelimiter && delimiter == '[' {
		// An empty list serialized as [] is accepted as an empty object.
		if closingToken, closingError := decoder.Token(); closingError == nil && closingToken == json.Delim(']') {
			return PackageList{}, nil
		}
		return nil, fmt.Errorf(packageListNotObjectTemplateConstant, key)
	}
	if !isDelimiter || delimiter != '{' {
		return nil, fmt.Errorf(packageListNotObjectTemplateConstant, key)
	}

	packages := PackageList{}
	for decoder.More() {
		nameToken, nameError := decoder.Token()
		if nameError != nil {
			return nil, nameError
		}
		packageName, _ := nameToken.(string)

		constraintToken, constraintError := decoder.Token()
		if constraintError != nil {
			return nil, constraintError
		}
		entry := PackageEntry{Name: packageName}
		switch typedConstraint := constraintToken.(type) {
		case string:
			entry.Constraint = Constraint(typedConstraint)
		case nil:
		default:
			return nil, fmt.Errorf(packageConstraintTypeTemplateConstant, key, packageName)
		}
		packages = packages.appendOrReplace(entry)
	}
	return packages, nil
}

func writePackageList(buffer *bytes.Buffer, packages PackageList) {
	buffer.WriteByte('{')
	for index, entry := range packages {
		if index > 0 {
			buffer.WriteByte(',')
		}
		writeString(buffer, entry.Name)
		buffer.WriteByte(':')
		if entry.Constraint == nil {
			buffer.WriteString(nullLiteralConstant)
			continue
		}
		writeString(buffer, *entry.Constraint)
	}
	buffer.WriteByte('}')
}

// normalizeValue re-emits a JSON value in compact form, keeping object key
// order and duplicate keys, and re-encoding strings without HTML or slash escapes.
func normalizeValue(value json.RawMessage) (json.RawMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()

	var buffer bytes.Buffer
	if writeError := writeNormalizedValue(decoder, &buffer); writeError != nil {
		return nil, writeError
	}
	return buffer.Bytes(), nil
}

func writeNormalizedValue(decoder *json.Decoder, buffer *bytes.Buffer) error {
	token, tokenError := decoder.Token()
	if tokenError != nil {
		return tokenError
	}

	switch typedToken := token.(type) {
	case json.Delim:
		return writeNormalizedContainer(decoder, buffer, typedToken)
	case string:
		writeString(buffer, typedToken)
	case json.Number:
		buffer.WriteString(typedToken.String())
	case bool:
		buffer.WriteString(strconv.FormatBool(typedToken))
	case nil:
		buffer.WriteString(nullLiteralConstant)
	default:
		return fmt.Errorf(unexpectedTokenTemplateConstant, token)
	}
	return nil
}

func writeNormalizedContainer(decoder *json.Decoder, buffer *bytes.Buffer, opening json.Delim) error {
	isObject := opening == '{'
	buffer.WriteRune(rune(opening))

	for elementIndex := 0; decoder.More(); elementIndex++ {
		if elementIndex > 0 {
			buffer.WriteByte(',')
		}
		if isObject {
			keyToken, keyError := decoder.Token()
			if keyError != nil {
				return keyError
			}
			key, _ := keyToken.(string)
			writeString(buffer, key)
			buffer.WriteByte(':')
		}
		if valueError := writeNormalizedValue(decoder, buffer); valueError != nil {
			return valueError
		}
	}

	closingToken, closingError := decoder.Token()
	if closingError != nil {
		return closingError
	}
	closingDelimiter, _ := closingToken.(json.Delim)
	buffer.WriteRune(rune(closingDelimiter))
	return nil
}

func writeString(buffer *bytes.Buffer, value string) {
	var encodedBuffer bytes.Buffer
	encoder := json.NewEncoder(&encodedBuffer)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(value)
	buffer.Write(bytes.TrimSuffix(encodedBuffer.Bytes(), []byte{'\n'}))
}
