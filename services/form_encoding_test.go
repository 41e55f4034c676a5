package services

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"testing"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() models.IPOPayload {
	n := NewNormalizer(nil)
	vm := NewIPOForm(models.IPOTypeSME, fixedNow)
	vm.CompanyName = "TechCorp"
	vm.Slug = "techcorp-ipo"
	vm.Icon = "https://cdn.example.com/old.png"
	vm.OpenDate = day("2024-01-05")
	vm.SubscriptionQIB = 2.5
	vm.GMP = 40
	return n.ToAPIPayload(vm, fixedNow)
}

func TestEncodeIPOPayloadURLEncoded(t *testing.T) {
	body, err := EncodeIPOPayload(samplePayload(), nil)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeURLEncoded, body.ContentType)

	values, err := url.ParseQuery(string(body.Body))
	require.NoError(t, err)

	assert.Equal(t, "TechCorp", values.Get("companyName"))
	assert.Equal(t, "SME", values.Get("ipoType"))
	assert.Equal(t, "2024-01-05T00:00:00.000Z", values.Get("open_date"))
	assert.False(t, values.Has("icon"))
	assert.False(t, values.Has("subscription_qib"))
	assert.False(t, values.Has("listing_price"))

	var sub models.Subscription
	require.NoError(t, json.Unmarshal([]byte(values.Get("subscription")), &sub))
	assert.Equal(t, 2.5, sub.QIB)

	var gmp []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(values.Get("gmp")), &gmp))
	require.Len(t, gmp, 1)
	assert.Equal(t, 40.0, gmp[0]["price"])
	assert.Equal(t, "2024-03-15T09:30:00.000Z", gmp[0]["date"])
}

func readMultipart(t *testing.T, body EncodedBody) (map[string]string, map[string]*multipart.Part, map[string][]byte) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(body.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	fields := map[string]string{}
	files := map[string]*multipart.Part{}
	contents := map[string][]byte{}
	reader := multipart.NewReader(bytes.NewReader(body.Body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		if part.FileName() != "" {
			files[part.FormName()] = part
			contents[part.FormName()] = data
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields, files, contents
}

func TestEncodeIPOPayloadMultipartWithIcon(t *testing.T) {
	icon := &models.Attachment{FileName: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	body, err := EncodeIPOPayload(samplePayload(), icon)
	require.NoError(t, err)

	fields, files, contents := readMultipart(t, body)
	assert.Equal(t, "TechCorp", fields["companyName"])
	assert.NotContains(t, fields, "icon")
	require.Contains(t, files, "icon")
	assert.Equal(t, "logo.png", files["icon"].FileName())
	assert.Equal(t, "image/png", files["icon"].Header.Get("Content-Type"))
	assert.Equal(t, icon.Data, contents["icon"])
	assert.Empty(t, icon.FieldName, "caller's attachment is not modified")
}

func TestEncodeRegistrar(t *testing.T) {
	r := models.Registrar{ID: "r1", Name: "Bigshare", Logo: "https://cdn.example.com/b.png", WebsiteLink: "https://www.bigshareonline.com"}

	plain, err := EncodeRegistrar(r, nil)
	require.NoError(t, err)
	values, err := url.ParseQuery(string(plain.Body))
	require.NoError(t, err)
	assert.False(t, values.Has("id"))
	assert.Equal(t, "https://cdn.example.com/b.png", values.Get("logo"))
	assert.False(t, values.Has("description"))

	withLogo, err := EncodeRegistrar(r, &models.Attachment{FileName: "b.svg", ContentType: "image/svg+xml", Data: []byte("<svg/>")})
	require.NoError(t, err)
	fields, files, _ := readMultipart(t, withLogo)
	assert.Equal(t, "Bigshare", fields["name"])
	assert.NotContains(t, fields, "logo")
	assert.Contains(t, files, "logo")
}

func TestFormFieldsRejectsNonStruct(t *testing.T) {
	_, err := FormFields(42)
	assert.Error(t, err)

	var nilPayload *models.IPOPayload
	_, err = FormFields(nilPayload)
	assert.Error(t, err)
}

func TestEncodeJSON(t *testing.T) {
	body, err := EncodeJSON(map[string]bool{"isAllotmentOut": true})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, body.ContentType)
	assert.JSONEq(t, `{"isAllotmentOut":true}`, string(body.Body))
}
