package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"churchsite/internal/model"
)

// Field is an internal import field.
type Field string

const (
	FirstName   Field = "firstName"
	LastName    Field = "lastName"
	Email       Field = "email"
	Phone       Field = "phone"
	Birthday    Field = "birthday"
	JoinedOn    Field = "joinedOn"
	Address     Field = "address"
	City        Field = "city"
	State       Field = "state"
	Zip         Field = "zip"
	FamilyName  Field = "familyName"
	FamilyRole  Field = "familyRole"
	Notes       Field = "notes"
	Status      Field = "status"
	Name        Field = "name"
	Description Field = "description"
	ImageURL    Field = "imageUrl"
	ContactName Field = "contactName"
	ContactMail Field = "contactEmail"
	MeetingInfo Field = "meetingInfo"
	Category    Field = "category"
	LeaderEmail Field = "leaderEmail"
	LeaderRole  Field = "leaderRole"
)

// Transform normalises one raw cell. Errors reject the row.
type Transform func(string) (string, error)

// Column maps a normalised header onto a field.
type Column struct {
	Field     Field
	Transform Transform
}

func col(f Field, fn Transform) Column { return Column{Field: f, Transform: fn} }

// MemberColumns is the header alias table for member exports. Keys are
// normalised with NormalizeHeader.
var MemberColumns = map[string]Column{
	"firstname":      col(FirstName, personName),
	"first":          col(FirstName, personName),
	"fname":          col(FirstName, personName),
	"givenname":      col(FirstName, personName),
	"preferredname":  col(FirstName, personName),
	"lastname":       col(LastName, personName),
	"last":           col(LastName, personName),
	"lname":          col(LastName, personName),
	"surname":        col(LastName, personName),
	"email":          col(Email, email),
	"emailaddress":   col(Email, email),
	"primaryemail":   col(Email, email),
	"email1":         col(Email, email),
	"phone":          col(Phone, phone),
	"phonenumber":    col(Phone, phone),
	"primaryphone":   col(Phone, phone),
	"mobile":         col(Phone, phone),
	"mobilephone":    col(Phone, phone),
	"cell":           col(Phone, phone),
	"cellphone":      col(Phone, phone),
	"homephone":      col(Phone, phone),
	"birthday":       col(Birthday, date),
	"birthdate":      col(Birthday, date),
	"dob":            col(Birthday, date),
	"dateofbirth":    col(Birthday, date),
	"joined":         col(JoinedOn, date),
	"joinedon":       col(JoinedOn, date),
	"joindate":       col(JoinedOn, date),
	"datejoined":     col(JoinedOn, date),
	"membersince":    col(JoinedOn, date),
	"membershipdate": col(JoinedOn, date),
	"address":        col(Address, nil),
	"address1":       col(Address, nil),
	"streetaddress":  col(Address, nil),
	"street":         col(Address, nil),
	"mailingaddress": col(Address, nil),
	"familyname":     col(FamilyName, personName),
	"family":         col(FamilyName, personName),
	"household":      col(FamilyName, personName),
	"householdname":  col(FamilyName, personName),
	"familyrole":     col(FamilyRole, lower),
	"householdrole":  col(FamilyRole, lower),
	"relationship":   col(FamilyRole, lower),
	"role":           col(FamilyRole, lower),
	"notes":          col(Notes, nil),
	"note":           col(Notes, nil),
	"comments":       col(Notes, nil),
	"status":         col(Status, status),
	"memberstatus":   col(Status, status),
	"active":         col(Status, status),
}

var FamilyColumns = map[string]Column{
	"familyname":    col(FamilyName, personName),
	"family":        col(FamilyName, personName),
	"household":     col(FamilyName, personName),
	"householdname": col(FamilyName, personName),
	"name":          col(FamilyName, personName),
	"lastname":      col(FamilyName, personName),
	"address":       col(Address, nil),
	"address1":      col(Address, nil),
	"streetaddress": col(Address, nil),
	"street":        col(Address, nil),
	"city":          col(City, nil),
	"town":          col(City, nil),
	"state":         col(State, upper),
	"province":      col(State, upper),
	"zip":           col(Zip, nil),
	"zipcode":       col(Zip, nil),
	"postalcode":    col(Zip, nil),
	"postcode":      col(Zip, nil),
	"phone":         col(Phone, phone),
	"phonenumber":   col(Phone, phone),
	"homephone":     col(Phone, phone),
	"email":         col(Email, email),
	"emailaddress":  col(Email, email),
	"familyemail":   col(Email, email),
}

var MinistryColumns = map[string]Column{
	"name":          col(Name, nil),
	"ministry":      col(Name, nil),
	"ministryname":  col(Name, nil),
	"team":          col(Name, nil),
	"teamname":      col(Name, nil),
	"description":   col(Description, nil),
	"desc":          col(Description, nil),
	"about":         col(Description, nil),
	"summary":       col(Description, nil),
	"image":         col(ImageURL, nil),
	"imageurl":      col(ImageURL, nil),
	"photo":         col(ImageURL, nil),
	"photourl":      col(ImageURL, nil),
	"contact":       col(ContactName, personName),
	"contactname":   col(ContactName, personName),
	"contactperson": col(ContactName, personName),
	"leader":        col(ContactName, personName),
	"leadername":    col(ContactName, personName),
	"contactemail":  col(ContactMail, email),
	"email":         col(ContactMail, email),
	"leaderemail":   col(LeaderEmail, email),
	"leaderrole":    col(LeaderRole, lower),
	"meetinginfo":   col(MeetingInfo, nil),
	"meets":         col(MeetingInfo, nil),
	"meetingtime":   col(MeetingInfo, nil),
	"schedule":      col(MeetingInfo, nil),
	"category":      col(Category, nil),
	"type":          col(Category, nil),
	"group":         col(Category, nil),
	"status":        col(Status, status),
	"active":        col(Status, status),
}

// NormalizeHeader lower-cases h and strips everything but letters and digits.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// personName title-cases values typed in a single case ("SMITH", "smith")
// and leaves mixed case ("McDonald") alone.
func personName(s string) (string, error) {
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return cases.Title(language.English).String(s), nil
	}
	return s, nil
}

func lower(s string) (string, error) { return strings.ToLower(s), nil }

func upper(s string) (string, error) { return strings.ToUpper(s), nil }

func email(s string) (string, error) {
	s = strings.ToLower(s)
	if !strings.Contains(s, "@") {
		return "", fmt.Errorf("invalid email %q", s)
	}
	return s, nil
}

// phone formats ten-digit North American numbers; anything else is kept.
func phone(s string) (string, error) {
	var digits []rune
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return s, nil
	}
	d := string(digits)
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:]), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
}

// date normalises common export formats to YYYY-MM-DD.
func date(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

func status(s string) (string, error) {
	switch strings.ToLower(s) {
	case "active", "yes", "y", "true", "1", "member":
		return string(model.StatusActive), nil
	case "inactive", "no", "n", "false", "0", "former":
		return string(model.StatusInactive), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
