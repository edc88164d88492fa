package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode is the stable identifier of an error. The first letter gives the
// class: S for syntax, T for type, D for built-in function failures and U for
// runaway evaluations.
type ErrorCode string

const (
	// S0xxx: lexer and parser errors
	ErrStringNotClosed     ErrorCode = "S0101"
	ErrNumberOutOfRange    ErrorCode = "S0102"
	ErrUnsupportedEscape   ErrorCode = "S0103"
	ErrBadUnicodeEscape    ErrorCode = "S0104"
	ErrNameNotClosed       ErrorCode = "S0105"
	ErrCommentNotClosed    ErrorCode = "S0106"
	ErrSyntax              ErrorCode = "S0201"
	ErrExpectedToken       ErrorCode = "S0202"
	ErrExpectedBeforeEnd   ErrorCode = "S0203"
	ErrUnknownOperator     ErrorCode = "S0204"
	ErrUnexpectedToken     ErrorCode = "S0205"
	ErrUnexpectedEnd       ErrorCode = "S0207"
	ErrLambdaParam         ErrorCode = "S0208"
	ErrPredicateAfterGroup ErrorCode = "S0209"
	ErrDoubleGroup         ErrorCode = "S0210"
	ErrNotUnary            ErrorCode = "S0211"
	ErrBindTarget          ErrorCode = "S0212"
	ErrLiteralStep         ErrorCode = "S0213"
	ErrBindingVariable     ErrorCode = "S0214"
	ErrFocusAfterFilter    ErrorCode = "S0215"
	ErrFocusAfterSort      ErrorCode = "S0216"
	ErrNoParent            ErrorCode = "S0217"
	ErrEmptyRegex          ErrorCode = "S0301"
	ErrRegexNotClosed      ErrorCode = "S0302"
	ErrInvalidRegex        ErrorCode = "S0303"
	ErrSignatureTypeParam  ErrorCode = "S0401"
	ErrSignatureChoice     ErrorCode = "S0402"
	ErrSignatureSyntax     ErrorCode = "S0403"
	ErrEvalSyntaxErrors    ErrorCode = "S0500"

	// T0xxx - T2xxx: type errors raised while evaluating
	ErrArgumentType        ErrorCode = "T0410"
	ErrContextType         ErrorCode = "T0411"
	ErrArrayItemType       ErrorCode = "T0412"
	ErrKeyNotString        ErrorCode = "T1003"
	ErrInvokeNonFunctionH  ErrorCode = "T1005"
	ErrInvokeNonFunction   ErrorCode = "T1006"
	ErrPartialNonFunctionH ErrorCode = "T1007"
	ErrPartialNonFunction  ErrorCode = "T1008"
	ErrMatcherResult       ErrorCode = "T1010"
	ErrLeftNotNumber       ErrorCode = "T2001"
	ErrRightNotNumber      ErrorCode = "T2002"
	ErrRangeLeftInteger    ErrorCode = "T2003"
	ErrRangeRightInteger   ErrorCode = "T2004"
	ErrApplyNonFunction    ErrorCode = "T2006"
	ErrSortMismatch        ErrorCode = "T2007"
	ErrSortNotComparable   ErrorCode = "T2008"
	ErrCompareMismatch     ErrorCode = "T2009"
	ErrNotComparable       ErrorCode = "T2010"
	ErrTransformUpdate     ErrorCode = "T2011"
	ErrTransformDelete     ErrorCode = "T2012"
	ErrTransformClone      ErrorCode = "T2013"

	// D1xxx - D3xxx: value errors raised by operators and built-ins
	ErrNumberNotFinite     ErrorCode = "D1001"
	ErrNegateNonNumber     ErrorCode = "D1002"
	ErrZeroLengthMatch     ErrorCode = "D1004"
	ErrDuplicateGroupKey   ErrorCode = "D1009"
	ErrRangeTooLarge       ErrorCode = "D2014"
	ErrStringNotFinite     ErrorCode = "D3001"
	ErrReplaceEmptyPattern ErrorCode = "D3010"
	ErrReplaceLimit        ErrorCode = "D3011"
	ErrReplaceResult       ErrorCode = "D3012"
	ErrSplitLimit          ErrorCode = "D3020"
	ErrNumberCast          ErrorCode = "D3030"
	ErrMatchLimit          ErrorCode = "D3040"
	ErrReduceArity         ErrorCode = "D3050"
	ErrSqrtNegative        ErrorCode = "D3060"
	ErrPowerRange          ErrorCode = "D3061"
	ErrSortDefault         ErrorCode = "D3070"
	ErrPictureParts        ErrorCode = "D3080"
	ErrPictureDecimal      ErrorCode = "D3081"
	ErrPicturePercent      ErrorCode = "D3082"
	ErrPicturePerMille     ErrorCode = "D3083"
	ErrPicturePercentBoth  ErrorCode = "D3084"
	ErrPictureNoDigit      ErrorCode = "D3085"
	ErrPicturePassive      ErrorCode = "D3086"
	ErrPictureGroupDecimal ErrorCode = "D3087"
	ErrPictureGroupEnd     ErrorCode = "D3088"
	ErrPictureGroupAdjoin  ErrorCode = "D3089"
	ErrPictureIntOptional  ErrorCode = "D3090"
	ErrPictureFracOptional ErrorCode = "D3091"
	ErrPictureExpPercent   ErrorCode = "D3092"
	ErrPictureExponent     ErrorCode = "D3093"
	ErrFormatBaseRadix     ErrorCode = "D3100"
	ErrDateParse           ErrorCode = "D3110"
	ErrEvalParse           ErrorCode = "D3120"
	ErrEvalRuntime         ErrorCode = "D3121"
	ErrPictureSequence     ErrorCode = "D3130"
	ErrPictureDigitFamily  ErrorCode = "D3131"
	ErrPictureComponent    ErrorCode = "D3132"
	ErrPictureName         ErrorCode = "D3133"
	ErrPictureTimezone     ErrorCode = "D3134"
	ErrPictureBracket      ErrorCode = "D3135"
	ErrPictureMissing      ErrorCode = "D3136"
	ErrUserError           ErrorCode = "D3137"
	ErrSingleMultiple      ErrorCode = "D3138"
	ErrSingleNone          ErrorCode = "D3139"
	ErrMalformedURL        ErrorCode = "D3140"
	ErrAssertion           ErrorCode = "D3141"

	// U1001: evaluation aborted by the depth or time guard
	ErrRunaway ErrorCode = "U1001"
)

var messages = map[ErrorCode]string{
	ErrStringNotClosed:     "String literal must be terminated by a matching quote",
	ErrNumberOutOfRange:    "Number out of range: {{token}}",
	ErrUnsupportedEscape:   "Unsupported escape sequence: \\{{token}}",
	ErrBadUnicodeEscape:    "The escape sequence \\u must be followed by 4 hex digits",
	ErrNameNotClosed:       "Quoted property name must be terminated with a backquote (`)",
	ErrCommentNotClosed:    "Comment has no closing tag",
	ErrSyntax:              "Syntax error: {{token}}",
	ErrExpectedToken:       "Expected {{value}}, got {{token}}",
	ErrExpectedBeforeEnd:   "Expected {{value}} before end of expression",
	ErrUnknownOperator:     "Unknown operator: {{token}}",
	ErrUnexpectedToken:     "Unexpected token: {{token}}",
	ErrUnexpectedEnd:       "Unexpected end of expression",
	ErrLambdaParam:         "Parameter {{value}} of function definition must be a variable name (start with $)",
	ErrPredicateAfterGroup: "A predicate cannot follow a grouping expression in a step",
	ErrDoubleGroup:         "Each step can only have one grouping expression",
	ErrNotUnary:            "The symbol {{token}} cannot be used as a unary operator",
	ErrBindTarget:          "The left side of := must be a variable name (start with $)",
	ErrLiteralStep:         "The literal value {{value}} cannot be used as a step within a path expression",
	ErrBindingVariable:     "The right side of {{token}} must be a variable name (start with $)",
	ErrFocusAfterFilter:    "A context variable binding must precede any predicates on a step",
	ErrFocusAfterSort:      "A context variable binding must precede the 'order-by' clause on a step",
	ErrNoParent:            "The object representing the 'parent' cannot be derived from this expression",
	ErrEmptyRegex:          "Empty regular expressions are not allowed",
	ErrRegexNotClosed:      "No terminating / in regular expression",
	ErrInvalidRegex:        "Invalid regular expression: {{token}}",
	ErrSignatureTypeParam:  "Type parameters can only be applied to functions and arrays",
	ErrSignatureChoice:     "Choice groups containing parameterized types are not supported",
	ErrSignatureSyntax:     "Malformed function signature: {{token}}",
	ErrEvalSyntaxErrors:    "Attempted to evaluate an expression containing syntax error(s)",

	ErrArgumentType:        "Argument {{index}} of function {{token}} does not match function signature",
	ErrContextType:         "Context value is not a compatible type with argument {{index}} of function {{token}}",
	ErrArrayItemType:       "Argument {{index}} of function {{token}} must be an array of {{type}}",
	ErrKeyNotString:        "Key in object structure must evaluate to a string; got: {{value}}",
	ErrInvokeNonFunctionH:  "Attempted to invoke a non-function. Did you mean ${{token}}?",
	ErrInvokeNonFunction:   "Attempted to invoke a non-function",
	ErrPartialNonFunctionH: "Attempted to partially apply a non-function. Did you mean ${{token}}?",
	ErrPartialNonFunction:  "Attempted to partially apply a non-function",
	ErrMatcherResult:       "The matcher function argument passed to function {{token}} does not return the correct object structure",
	ErrLeftNotNumber:       "The left side of the {{token}} operator must evaluate to a number",
	ErrRightNotNumber:      "The right side of the {{token}} operator must evaluate to a number",
	ErrRangeLeftInteger:    "The left side of the range operator (..) must evaluate to an integer",
	ErrRangeRightInteger:   "The right side of the range operator (..) must evaluate to an integer",
	ErrApplyNonFunction:    "The right side of the function application operator ~> must be a function",
	ErrSortMismatch:        "Type mismatch when comparing values {{value}} and {{value2}} in order-by clause",
	ErrSortNotComparable:   "The expressions within an order-by clause must evaluate to numeric or string values",
	ErrCompareMismatch:     "The values {{value}} and {{value2}} either side of operator {{token}} must be of the same data type",
	ErrNotComparable:       "The expressions either side of operator {{token}} must evaluate to numeric or string values",
	ErrTransformUpdate:     "The insert/update clause of the transform expression must evaluate to an object: {{value}}",
	ErrTransformDelete:     "The delete clause of the transform expression must evaluate to a string or array of strings: {{value}}",
	ErrTransformClone:      "The transform expression clones the input object using the $clone() function. This has been overridden in the current scope by a non-function.",

	ErrNumberNotFinite:     "Number out of range: {{value}}",
	ErrNegateNonNumber:     "Cannot negate a non-numeric value: {{value}}",
	ErrZeroLengthMatch:     "Regular expression matches zero length string",
	ErrDuplicateGroupKey:   "Multiple key definitions evaluate to same key: {{value}}",
	ErrRangeTooLarge:       "The size of the sequence allocated by the range operator (..) must not exceed 1e7. Attempted to allocate {{value}}.",
	ErrStringNotFinite:     "Attempting to invoke string function on Infinity or NaN",
	ErrReplaceEmptyPattern: "Second argument of replace function cannot be an empty string",
	ErrReplaceLimit:        "Fourth argument of replace function must evaluate to a positive number",
	ErrReplaceResult:       "Attempted to replace a matched string with a non-string value",
	ErrSplitLimit:          "Third argument of split function must evaluate to a positive number",
	ErrNumberCast:          "Unable to cast value to a number: {{value}}",
	ErrMatchLimit:          "Third argument of match function must evaluate to a positive number",
	ErrReduceArity:         "The second argument of reduce function must be a function with at least two arguments",
	ErrSqrtNegative:        "The sqrt function cannot be applied to a negative number: {{value}}",
	ErrPowerRange:          "The power function has resulted in a value that cannot be represented as a JSON number: base={{value}}, exponent={{value2}}",
	ErrSortDefault:         "The single argument form of the sort function can only be applied to an array of strings or an array of numbers. Use the second argument to specify a comparison function",
	ErrPictureParts:        "The picture string must only contain a maximum of two sub-pictures",
	ErrPictureDecimal:      "The sub-picture must not contain more than one instance of the 'decimal-separator' character",
	ErrPicturePercent:      "The sub-picture must not contain more than one instance of the 'percent' character",
	ErrPicturePerMille:     "The sub-picture must not contain more than one instance of the 'per-mille' character",
	ErrPicturePercentBoth:  "The sub-picture must not contain both a 'percent' and a 'per-mille' character",
	ErrPictureNoDigit:      "The mantissa part of a sub-picture must contain at least one character that is either an 'optional digit character' or a member of the 'decimal digit family'",
	ErrPicturePassive:      "The sub-picture must not contain a passive character that is preceded by an active character and that is followed by another active character",
	ErrPictureGroupDecimal: "The sub-picture must not contain a 'grouping-separator' character that appears adjacent to a 'decimal-separator' character",
	ErrPictureGroupEnd:     "The sub-picture must not contain a 'grouping-separator' at the end of the integer part",
	ErrPictureGroupAdjoin:  "The sub-picture must not contain two adjacent instances of the 'grouping-separator' character",
	ErrPictureIntOptional:  "The integer part of the sub-picture must not contain a member of the 'decimal digit family' that is followed by an instance of the 'optional digit character'",
	ErrPictureFracOptional: "The fractional part of the sub-picture must not contain an instance of the 'optional digit character' that is followed by a member of the 'decimal digit family'",
	ErrPictureExpPercent:   "A sub-picture that contains a 'percent' or 'per-mille' character must not contain a character treated as an 'exponent-separator'",
	ErrPictureExponent:     "The exponent part of the sub-picture must comprise only of one or more characters that are members of the 'decimal digit family'",
	ErrFormatBaseRadix:     "The radix of the formatBase function must be between 2 and 36. It was given {{value}}",
	ErrDateParse:           "Unable to parse date/time value: {{value}}",
	ErrEvalParse:           "Syntax error in expression passed to function eval: {{value}}",
	ErrEvalRuntime:         "Dynamic error evaluating the expression passed to function eval: {{value}}",
	ErrPictureSequence:     "Formatting or parsing an integer as a sequence starting with {{value}} is not supported",
	ErrPictureDigitFamily:  "In a decimal digit pattern, all digits must be from the same decimal group",
	ErrPictureComponent:    "Unknown component specifier {{value}} in date/time picture string",
	ErrPictureName:         "The 'name' modifier can only be applied to months and days in the date/time picture string, not {{value}}",
	ErrPictureTimezone:     "The timezone integer format specifier cannot have more than four digits",
	ErrPictureBracket:      "No matching closing bracket ']' in date/time picture string",
	ErrPictureMissing:      "The date/time picture string is missing specifiers required to parse the timestamp",
	ErrUserError:           "{{value}}",
	ErrSingleMultiple:      "The $single() function expected exactly 1 matching result. Instead it matched more.",
	ErrSingleNone:          "The $single() function expected exactly 1 matching result. Instead it matched 0.",
	ErrMalformedURL:        "Malformed URL passed to {{token}}(): {{value}}",
	ErrAssertion:           "{{value}}",

	ErrRunaway: "Stack overflow error: Check for non-terminating recursive function. Consider rewriting as tail-recursive.",
}

// Error is the structured error returned by compilation and evaluation.
type Error struct {
	Code     ErrorCode
	Position int
	Token    string
	Value    Value
	Value2   Value
	Index    int
	Type     string
	// Message overrides the catalogue text when set.
	Message string
	Err     error

	hasValue  bool
	hasValue2 bool
}

// NewError creates an error with the catalogue message for code.
func NewError(code ErrorCode, position int) *Error {
	return &Error{Code: code, Position: position}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Code, e.Position, e.Text())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Text())
}

// Text renders the human readable message without the code prefix.
func (e *Error) Text() string {
	if e.Message != "" {
		return e.Message
	}
	tmpl, ok := messages[e.Code]
	if !ok {
		return string(e.Code)
	}
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	r := strings.NewReplacer(
		"{{token}}", e.Token,
		"{{value}}", e.render(e.Value, e.hasValue),
		"{{value2}}", e.render(e.Value2, e.hasValue2),
		"{{index}}", strconv.Itoa(e.Index),
		"{{type}}", e.Type,
	)
	return r.Replace(tmpl)
}

func (e *Error) render(v Value, set bool) string {
	if !set || v == nil {
		return "undefined"
	}
	if s, ok := v.(String); ok {
		return string(s)
	}
	out, err := Stringify(v, false)
	if err != nil {
		return fmt.Sprint(v)
	}
	return out
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithToken sets the offending token or function name.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithValue sets the offending value.
func (e *Error) WithValue(v Value) *Error {
	e.Value = v
	e.hasValue = true
	return e
}

// WithValue2 sets the second offending value of a binary failure.
func (e *Error) WithValue2(v Value) *Error {
	e.Value2 = v
	e.hasValue2 = true
	return e
}

// WithIndex sets the 1-based argument index.
func (e *Error) WithIndex(i int) *Error {
	e.Index = i
	return e
}

// WithType sets the expected element type name.
func (e *Error) WithType(t string) *Error {
	e.Type = t
	return e
}

// WithMessage replaces the catalogue text.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
