package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
)

const (
	ContentTypeJSON       = "application/json"
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
)

// FormField is one top-level key of an encoded body with its rendered value
type FormField struct {
	Name  string
	Value string
}

// EncodedBody is a request body ready to send
type EncodedBody struct {
	ContentType string
	Body        []byte
}

// FormFields renders the json-tagged fields of a struct in declaration order.
// Strings are sent as is, numbers and booleans in their shortest form, times in
// ISOMillis, and nested structs, maps and slices as JSON text. Fields tagged
// omitempty are skipped when zero.
func FormFields(v interface{}) ([]FormField, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot encode nil value")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot encode %s as form fields", rv.Kind())
	}

	rt := rv.Type()
	fields := make([]FormField, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("json")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fv := rv.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		value, err := renderFormValue(fv)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		fields = append(fields, FormField{Name: name, Value: value})
	}
	return fields, nil
}

func renderFormValue(fv reflect.Value) (string, error) {
	if t, ok := fv.Interface().(time.Time); ok {
		return t.UTC().Format(models.ISOMillis), nil
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(fv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(fv.Float(), 'f', -1, 64), nil
	default:
		data, err := json.Marshal(fv.Interface())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// EncodeForm builds multipart/form-data when an attachment is present and
// application/x-www-form-urlencoded otherwise
func EncodeForm(fields []FormField, attachment *models.Attachment) (EncodedBody, error) {
	if attachment.IsEmpty() {
		values := url.Values{}
		for _, f := range fields {
			values.Add(f.Name, f.Value)
		}
		return EncodedBody{ContentType: ContentTypeURLEncoded, Body: []byte(values.Encode())}, nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return EncodedBody{}, fmt.Errorf("failed to write field %s: %w", f.Name, err)
		}
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileName := attachment.FileName
	if fileName == "" {
		fileName = attachment.FieldName
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(attachment.FieldName), escapeQuotes(fileName)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return EncodedBody{}, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return EncodedBody{}, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodedBody{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return EncodedBody{ContentType: writer.FormDataContentType(), Body: buf.Bytes()}, nil
}

// EncodeIPOPayload encodes an IPO payload with an optional icon file part
func EncodeIPOPayload(payload models.IPOPayload, icon *models.Attachment) (EncodedBody, error) {
	fields, err := FormFields(payload)
	if err != nil {
		return EncodedBody{}, err
	}
	if !icon.IsEmpty() {
		named := *icon
		named.FieldName = "icon"
		icon = &named
	}
	return EncodeForm(fields, icon)
}

// EncodeRegistrar encodes a registrar with an optional logo file part.
// A new logo replaces the stored logo reference.
func EncodeRegistrar(r models.Registrar, logo *models.Attachment) (EncodedBody, error) {
	r.ID = ""
	if !logo.IsEmpty() {
		named := *logo
		named.FieldName = "logo"
		logo = &named
		r.Logo = ""
	}
	fields, err := FormFields(r)
	if err != nil {
		return EncodedBody{}, err
	}
	return EncodeForm(fields, logo)
}

// EncodeJSON encodes v as a JSON body
func EncodeJSON(v interface{}) (EncodedBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return EncodedBody{}, fmt.Errorf("failed to encode json body: %w", err)
	}
	return EncodedBody{ContentType: ContentTypeJSON, Body: data}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
