package knowledge

// builtinDocuments seeds an empty store. Order is significant: it defines the
// insertion sequence used to break ranking ties.
var builtinDocuments = []seed{
	{
		Category: "symptoms",
		Title:    "Headache Types and Causes",
		Content: `Headaches can be classified into several types:

1. Tension Headaches:
- Most common type (90% of headaches)
- Caused by stress, poor posture, eye strain
- Feels like tight band around head
- Usually mild to moderate pain
- Treatment: Rest, hydration, OTC pain relievers

2. Migraine Headaches:
- Severe throbbing pain, usually one-sided
- Often accompanied by nausea, light sensitivity
- Can last 4-72 hours
- May have aura (visual disturbances)
- Treatment: Prescription medications, avoid triggers

3. Cluster Headaches:
- Severe pain around one eye
- Occurs in clusters over weeks/months
- More common in men
- Treatment: Oxygen therapy, prescription medications

4. Sinus Headaches:
- Pain in forehead, cheeks, around eyes
- Associated with sinus congestion
- Often confused with migraines
- Treatment: Decongestants, treat underlying sinus issue

Red flags requiring immediate medical attention:
- Sudden severe headache ("worst headache of life")
- Headache with fever and neck stiffness
- Headache after head injury
- Progressive worsening headaches
- Headache with vision changes or weakness`,
	},
	{
		Category: "symptoms",
		Title:    "Fever Management and Causes",
		Content: `Fever is a common symptom indicating the body's immune response:

Normal body temperature: 98.6°F (37°C)
Fever classifications:
- Low-grade: 100.4-102°F (38-38.9°C)
- Moderate: 102-104°F (38.9-40°C)
- High: Above 104°F (40°C)

Common causes:
1. Viral infections (most common)
2. Bacterial infections
3. Inflammatory conditions
4. Heat exhaustion
5. Certain medications
6. Immunizations

Management:
- Rest and increased fluid intake
- Acetaminophen or ibuprofen for comfort
- Cool compresses
- Light clothing
- Monitor temperature regularly

Seek immediate medical care if:
- Temperature above 103°F (39.4°C)
- Fever lasting more than 3 days
- Severe symptoms (difficulty breathing, chest pain)
- Signs of dehydration
- Fever in infants under 3 months
- Fever with severe headache and neck stiffness`,
	},
	{
		Category: "symptoms",
		Title:    "Respiratory Symptoms",
		Content: `Common respiratory symptoms and their implications:

1. Cough:
- Dry cough: Often viral, allergies, or irritants
- Productive cough: May indicate bacterial infection
- Chronic cough: Lasting >8 weeks, needs evaluation

2. Sore Throat:
- Viral (most common): Gradual onset, mild symptoms
- Bacterial (strep): Sudden onset, severe pain, fever
- Allergic: Associated with other allergy symptoms

3. Shortness of Breath:
- Acute: May indicate serious condition
- Chronic: Could be asthma, COPD, heart disease
- With chest pain: Possible heart or lung emergency

4. Chest Congestion:
- Often accompanies upper respiratory infections
- May progress to lower respiratory tract

Treatment approaches:
- Viral: Supportive care, rest, fluids
- Bacterial: May require antibiotics
- Allergic: Antihistamines, avoid triggers

Seek immediate care for:
- Severe difficulty breathing
- Chest pain with shortness of breath
- High fever with respiratory symptoms
- Coughing up blood
- Symptoms worsening rapidly`,
	},
	{
		Category: "symptoms",
		Title:    "Gastrointestinal Issues",
		Content: `Common GI symptoms and management:

1. Nausea and Vomiting:
- Viral gastroenteritis (stomach flu)
- Food poisoning
- Motion sickness
- Medication side effects
- Pregnancy (morning sickness)

2. Diarrhea:
- Acute: Usually viral or bacterial
- Chronic: May indicate underlying condition
- With blood: Requires medical evaluation

3. Abdominal Pain:
- Location helps determine cause
- Upper right: Gallbladder, liver
- Lower right: Appendix
- Lower left: Diverticulitis
- Central: Stomach, small intestine

4. Constipation:
- Less than 3 bowel movements per week
- Hard, dry stools
- Straining during bowel movements

Management:
- Stay hydrated (especially with vomiting/diarrhea)
- BRAT diet (bananas, rice, applesauce, toast)
- Probiotics for digestive health
- Fiber for constipation

Seek medical care for:
- Severe abdominal pain
- Blood in vomit or stool
- Signs of dehydration
- Persistent symptoms >48 hours
- Fever with abdominal pain`,
	},
	{
		Category: "first_aid",
		Title:    "Emergency First Aid",
		Content: `Basic first aid for common emergencies:

1. Cuts and Wounds:
- Apply direct pressure to stop bleeding
- Clean with water when bleeding stops
- Apply antibiotic ointment
- Cover with sterile bandage
- Seek medical care for deep cuts

2. Burns:
- Cool with running water for 10-20 minutes
- Do not use ice
- Cover with sterile gauze
- Do not break blisters
- Seek care for burns larger than palm size

3. Sprains:
- R.I.C.E. method: Rest, Ice, Compression, Elevation
- Apply ice for 15-20 minutes every 2-3 hours
- Use elastic bandage for compression
- Elevate injured area above heart level

4. Choking:
- Heimlich maneuver for adults
- Back blows and chest thrusts for infants
- Call 911 if object cannot be dislodged

5. Allergic Reactions:
- Remove or avoid allergen
- Antihistamines for mild reactions
- Epinephrine for severe reactions (anaphylaxis)
- Call 911 for severe reactions`,
	},
	{
		Category: "prevention",
		Title:    "Preventive Health Measures",
		Content: `Key preventive health strategies:

1. Vaccination:
- Annual flu vaccine
- COVID-19 vaccines and boosters
- Routine adult vaccines (Tdap, MMR, etc.)
- Travel vaccines as needed

2. Screening Tests:
- Blood pressure: Annually
- Cholesterol: Every 5 years
- Diabetes: Every 3 years if risk factors
- Cancer screenings: Age and risk-appropriate

3. Lifestyle Factors:
- Regular exercise (150 minutes moderate/week)
- Balanced diet with fruits and vegetables
- Adequate sleep (7-9 hours/night)
- Stress management
- No smoking, limited alcohol

4. Hygiene:
- Hand washing frequently
- Dental care (brush twice daily, floss)
- Safe food handling
- Clean water consumption

5. Safety:
- Wear seatbelts and helmets
- Sun protection (sunscreen, protective clothing)
- Home safety (smoke detectors, carbon monoxide)
- Medication safety (proper storage, disposal)`,
	},
	{
		Category: "medications",
		Title:    "Common Over-the-Counter Medications",
		Content: `Safe use of common OTC medications:

1. Pain Relievers:
- Acetaminophen (Tylenol): Safe for most people, max 3000mg/day
- Ibuprofen (Advil, Motrin): Anti-inflammatory, take with food
- Aspirin: Blood thinner, avoid in children with viral illness

2. Cold and Allergy:
- Antihistamines: For allergies, may cause drowsiness
- Decongestants: For nasal congestion, may raise blood pressure
- Cough suppressants: For dry cough
- Expectorants: Help loosen mucus

3. Digestive:
- Antacids: For heartburn, quick relief
- H2 blockers: Longer-lasting acid reduction
- Anti-diarrheal: For temporary diarrhea relief
- Laxatives: For constipation, use as directed

Important safety tips:
- Read labels carefully
- Don't exceed recommended doses
- Check for drug interactions
- Consult pharmacist or doctor if unsure
- Keep medications in original containers
- Store safely away from children`,
	},
}

type seed struct {
	Category string
	Title    string
	Content  string
}
